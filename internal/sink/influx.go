// Package sink ships decoded signal rows to InfluxDB so merged logs can be
// graphed next to live telemetry.
package sink

import (
	"math"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"

	"github.com/canlog/tpmerge/internal/decode"
	"github.com/canlog/tpmerge/internal/metrics"
)

// Influx writes signal rows through an asynchronous write API. A nil *Influx
// is a valid no-op sink.
type Influx struct {
	writeAPI api.WriteAPI
}

// New connects a write API obtained from an influxdb2 client.
func New(writeAPI api.WriteAPI) *Influx {
	return &Influx{writeAPI: writeAPI}
}

// Connect builds a client for host/org/bucket and returns the sink plus a
// flush-and-close func.
func Connect(host, token, org, bucket string) (*Influx, func()) {
	client := influxdb2.NewClient(host, token)
	w := client.WriteAPI(org, bucket)
	return New(w), func() {
		w.Flush()
		client.Close()
	}
}

// WriteSignals enqueues one point per row. Rows with non-finite values are
// skipped; Influx rejects them anyway and one bad division should not poison
// the batch.
func (s *Influx) WriteSignals(rows []decode.Signal) {
	if s == nil || s.writeAPI == nil {
		return
	}
	for _, r := range rows {
		if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
			metrics.IncError(metrics.ErrSink)
			continue
		}
		s.writeAPI.WritePoint(influxdb2.NewPoint("can.signal",
			map[string]string{"signal": r.Name},
			map[string]interface{}{"value": r.Value},
			tsToTime(r.Timestamp)))
	}
}

func tsToTime(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
