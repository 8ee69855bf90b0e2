package imageRepository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"Unwarp/internal/entity"
	contextPkg "Unwarp/pkg/context"
)

type ImageProcessingDB struct {
	ID             string         `db:"id"`
	ImageID        string         `db:"image_id"`
	CornerPoints   []byte         `db:"corner_points"`
	OutputWidth    int            `db:"output_width"`
	OutputHeight   int            `db:"output_height"`
	Enhanced       bool           `db:"enhanced"`
	Status         string         `db:"status"`
	ErrorMessage   sql.NullString `db:"error_message"`
	ProcessingTime float64        `db:"processing_time"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (r *processingRepository) CreateProcessing(c context.Context, p entity.ImageProcessing) error {
	requestID := contextPkg.GetRequestID(c)

	points, err := marshalPoints(p.CornerPoints)
	if err != nil {
		return err
	}

	argsKV := map[string]interface{}{
		"id":              p.ID,
		"image_id":        p.ImageID,
		"corner_points":   string(points),
		"output_width":    p.OutputWidth,
		"output_height":   p.OutputHeight,
		"enhanced":        p.Enhanced,
		"status":          string(p.Status),
		"error_message":   sql.NullString{String: p.ErrorMessage, Valid: p.ErrorMessage != ""},
		"processing_time": p.ProcessingTime.Seconds(),
		"created_at":      p.CreatedAt,
	}

	query, args, err := sqlx.Named(queryCreateProcessing, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateProcessing")
		return err
	}
	query = r.q.Rebind(query)

	if _, err = r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"image_id":   p.ImageID,
			"error":      err.Error(),
		}).Error("Database error when recording processing")
		return err
	}

	return nil
}

func (r *processingRepository) GetProcessingsByImageID(c context.Context, imageID string) ([]entity.ImageProcessing, error) {
	requestID := contextPkg.GetRequestID(c)
	var rows []ImageProcessingDB

	query, args, err := sqlx.Named(queryGetProcessingsByImageID, map[string]interface{}{"image_id": imageID})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetProcessingsByImageID named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	if err := r.q.SelectContext(c, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetProcessingsByImageID execution err")
		return nil, err
	}

	out := make([]entity.ImageProcessing, 0, len(rows))
	for _, row := range rows {
		points, err := unmarshalPoints(row.CornerPoints)
		if err != nil {
			return nil, err
		}
		out = append(out, entity.ImageProcessing{
			ID:             row.ID,
			ImageID:        row.ImageID,
			CornerPoints:   points,
			OutputWidth:    row.OutputWidth,
			OutputHeight:   row.OutputHeight,
			Enhanced:       row.Enhanced,
			Status:         entity.ProcessingStatus(row.Status),
			ErrorMessage:   row.ErrorMessage.String,
			ProcessingTime: time.Duration(row.ProcessingTime * float64(time.Second)),
			CreatedAt:      row.CreatedAt,
		})
	}
	return out, nil
}
