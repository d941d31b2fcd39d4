// Package influxdb writes display telemetry to InfluxDB v2.
//
// Samples are queued on the client's non-blocking write API and sent in
// batches (influxdb.batch_size, influxdb.flush_interval). Batch failures
// arrive asynchronously through SetOnError.
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	client.WriteDisplaySample(influxdb.DisplaySample{DeviceKey: "display-boardroom", Power: true})
package influxdb
