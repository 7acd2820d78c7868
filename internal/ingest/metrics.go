package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/propensity-cli/internal/model"
	"github.com/sells-group/propensity-cli/internal/resolve"
)

type metricKey struct {
	subID int64
	year  int
}

// ImportMetrics resolves each row's sub and writes all valid rows in one bulk
// upsert. When a file repeats a (sub, year) the last row wins. Created is the
// number of metric rows inserted or replaced.
func (im *Importer) ImportMetrics(ctx context.Context, rows []MetricRow) (*Result, error) {
	res := &Result{}
	log := zap.L().With(zap.String("component", "ingest.metrics"))

	index := make(map[metricKey]int)
	var metrics []model.LaggingMetric
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "ingest: metrics cancelled")
		}
		row.trim()
		m, err := row.parse()
		if err != nil {
			res.fail(rowNumber(i), err)
			continue
		}

		sub, _, err := im.resolver.FindOrCreate(ctx, row.SubName, resolve.CreateAs(model.RoleSub))
		if err == nil && sub == nil {
			err = eris.Errorf("sub_name %q normalizes to empty", row.SubName)
		}
		if err != nil {
			log.Warn("ingest: metric row failed", zap.Int("row", rowNumber(i)), zap.Error(err))
			res.fail(rowNumber(i), err)
			continue
		}
		m.SubID = sub.ID
		res.Processed++

		k := metricKey{m.SubID, m.Year}
		if at, ok := index[k]; ok {
			metrics[at] = *m
			continue
		}
		index[k] = len(metrics)
		metrics = append(metrics, *m)
	}

	n, err := im.store.BulkUpsertMetrics(ctx, metrics)
	if err != nil {
		return res, eris.Wrap(err, "ingest: write metrics")
	}
	res.Created = int(n)

	log.Info("ingest: metrics imported",
		zap.Int("rows", len(rows)),
		zap.Int("processed", res.Processed),
		zap.Int("written", res.Created),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}
