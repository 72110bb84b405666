// Command turret_logger copies turret telemetry from the web relay's
// websocket into InfluxDB.
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/influxdata/influxdb-client-go/api/write"
	"github.com/w1xm/turret_interface/turret"
)

var (
	org    = flag.String("org", "w1xm", "InfluxDB organization")
	bucket = flag.String("bucket", "turret.raw", "InfluxDB bucket")
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	flag.Parse()
	// Create client
	client := influxdb2.NewClient(getenv("INFLUX_SERVER", "http://localhost:9999"), os.Getenv("INFLUX_TOKEN"))
	defer client.Close()
	// Get non-blocking write client
	writeApi := client.WriteApi(*org, *bucket)
	defer writeApi.Close()
	// Get errors channel
	errorsCh := writeApi.Errors()
	// Create go proc for reading and logging errors
	go func() {
		for err := range errorsCh {
			log.Printf("write error: %v", err)
		}
	}()
	url := getenv("TURRET_ADDRESS", "ws://localhost:8503/api/ws")
	for {
		if err := logData(url, writeApi); err != nil {
			log.Print(err)
		}
		time.Sleep(1 * time.Second)
	}
}

func boolField(v bool) int {
	if v {
		return 1
	}
	return 0
}

// statusPoint flattens one snapshot. Snapshots without a timestamp have never
// been published by a poll cycle and yield nil.
func statusPoint(status turret.Data) *write.Point {
	if status.Timestamp.IsZero() {
		return nil
	}
	fields := map[string]interface{}{
		"imu.x_deg":        status.Imu.X,
		"imu.y_deg":        status.Imu.Y,
		"absolute.x_deg":   status.Absolute.X,
		"absolute.y_deg":   status.Absolute.Y,
		"rate.x_deg_s":     status.Rate.X,
		"rate.y_deg_s":     status.Rate.Y,
		"fire_enabled":     boolField(status.FireEnabled),
		"agitator_enabled": boolField(status.AgitatorEnabled),
		"last_sequence":    status.LastSequence,
		"missed_ticks":     status.MissedTicks,
	}
	if c := status.ImuCommand; c != nil {
		fields["imu_command.x_deg"] = c.X
		fields["imu_command.y_deg"] = c.Y
	}
	return influxdb2.NewPoint("turret.status",
		map[string]string{"mode": status.Mode.String()},
		fields,
		status.Timestamp,
	)
}

func logData(url string, writeApi api.WriteApi) error {
	defer writeApi.Flush()
	var dialer websocket.Dialer
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	for {
		var status turret.Data
		if err := conn.ReadJSON(&status); err != nil {
			return err
		}
		if p := statusPoint(status); p != nil {
			// write asynchronously
			writeApi.WritePoint(p)
		}
	}
}
