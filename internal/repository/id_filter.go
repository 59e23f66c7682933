package repository

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Guyuepp/go-comment-engine/domain"
)

const DefaultWarmBatch = 1000

// WarmIDFilter loads every stored comment id into filter and marks it complete.
// It returns how many ids were loaded.
func WarmIDFilter(ctx context.Context, src domain.CommentIDSource, filter domain.IDFilter, batch int) (int, error) {
	if batch <= 0 {
		batch = DefaultWarmBatch
	}

	var (
		afterID int64
		total   int
	)
	for {
		ids, err := src.FetchIDs(ctx, afterID, batch)
		if err != nil {
			return total, err
		}
		last := len(ids) < batch
		if err := filter.BulkAdd(ctx, ids, last); err != nil {
			return total, err
		}
		total += len(ids)
		if last {
			break
		}
		afterID = ids[len(ids)-1]
	}

	logrus.Infof("comment id filter warmed with %d ids", total)
	return total, nil
}
