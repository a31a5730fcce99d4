// Package influx delivers encoded telemetry records to an InfluxDB v2
// write endpoint.
//
// This package manages:
//   - Line protocol encoding (via the InfluxDB client library's encoder)
//   - The immediate write client (one HTTP POST per batch)
//   - The buffered batch writer: a bounded submission queue plus a
//     background flush loop with size, count and timer triggers
//   - Per-record delivery status cells (Initiated → Buffered → Accepted)
//   - A flux query client used by the character display
//
// # Architecture
//
// Producers call Writer.Submit with one encoded line and receive a
// StatusCell they can watch. The flush loop accumulates lines in arrival
// order and posts them as newline-delimited bodies of at most MaxLines
// records each, oldest first. A failed post keeps the undelivered
// records at the front of the pending queue, still in order; there is
// no retry limit and no backoff. Data is held in memory
// only, bounded by the submission channel's capacity and the producers it
// blocks.
//
// # Usage
//
//	writer := influx.NewWriter(client, influx.WriterOptions{})
//	go writer.Run(ctx)
//
//	cell, err := writer.Submit(influx.EncodeLine("telemetry",
//	    map[string]string{"device": "garage/plug"},
//	    map[string]interface{}{"power": int64(230)},
//	    time.Now()))
//	if err == nil {
//	    _ = cell.Await(ctx, influx.StatusAccepted)
//	}
package influx
