package imageRepository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	imageApi "Unwarp/internal/api/image"
	"Unwarp/internal/entity"
	contextPkg "Unwarp/pkg/context"
	"Unwarp/pkg/geometry"
)

type ImageDB struct {
	ID             string          `db:"id"`
	Filename       string          `db:"filename"`
	ContentType    string          `db:"content_type"`
	Format         string          `db:"format"`
	Width          int             `db:"width"`
	Height         int             `db:"height"`
	SizeBytes      int64           `db:"size_bytes"`
	OriginalKey    string          `db:"original_key"`
	ProcessedKey   sql.NullString  `db:"processed_key"`
	CornerPoints   []byte          `db:"corner_points"`
	ProcessingTime sql.NullFloat64 `db:"processing_time"`
	ProcessedAt    sql.NullTime    `db:"processed_at"`
	UploadTime     time.Time       `db:"upload_time"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func (r *imageRepository) CreateImage(c context.Context, img entity.Image) error {
	requestID := contextPkg.GetRequestID(c)
	argsKV := map[string]interface{}{
		"id":           img.ID,
		"filename":     img.Filename,
		"content_type": img.ContentType,
		"format":       img.Format,
		"width":        img.Width,
		"height":       img.Height,
		"size_bytes":   img.SizeBytes,
		"original_key": img.OriginalKey,
		"upload_time":  img.UploadTime,
		"updated_at":   img.UpdatedAt,
	}

	query, args, err := sqlx.Named(queryCreateImage, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateImage")
		return err
	}
	query = r.q.Rebind(query)

	if _, err = r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"image_id":   img.ID,
			"error":      err.Error(),
		}).Error("Database error when creating image")
		return err
	}

	return nil
}

func (r *imageRepository) GetImageByID(c context.Context, id string) (entity.Image, error) {
	requestID := contextPkg.GetRequestID(c)
	var row ImageDB

	query, args, err := sqlx.Named(queryGetImageByID, map[string]interface{}{"id": id})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetImageByID named query preparation err")
		return entity.Image{}, err
	}
	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(c, query, args...).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"image_id":   id,
			}).Warn("GetImageByID no rows found")
			return entity.Image{}, imageApi.ErrImageNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetImageByID execution err")
		return entity.Image{}, err
	}

	return r.makeImage(row)
}

func (r *imageRepository) UpdateProcessed(c context.Context, img entity.Image) error {
	requestID := contextPkg.GetRequestID(c)

	points, err := marshalPoints(img.CornerPoints)
	if err != nil {
		return err
	}

	argsKV := map[string]interface{}{
		"id":              img.ID,
		"processed_key":   img.ProcessedKey,
		"corner_points":   string(points),
		"processing_time": img.ProcessingTime.Seconds(),
		"processed_at":    img.ProcessedAt,
		"updated_at":      time.Now(),
	}

	query, args, err := sqlx.Named(queryUpdateProcessed, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for UpdateProcessed")
		return err
	}
	query = r.q.Rebind(query)

	result, err := r.q.ExecContext(c, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"image_id":   img.ID,
			"error":      err.Error(),
		}).Error("Database error when updating processed image")
		return err
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return imageApi.ErrImageNotFound
	}

	return nil
}

func (r *imageRepository) makeImage(row ImageDB) (entity.Image, error) {
	points, err := unmarshalPoints(row.CornerPoints)
	if err != nil {
		return entity.Image{}, err
	}

	img := entity.Image{
		ID:           row.ID,
		Filename:     row.Filename,
		ContentType:  row.ContentType,
		Format:       row.Format,
		Width:        row.Width,
		Height:       row.Height,
		SizeBytes:    row.SizeBytes,
		OriginalKey:  row.OriginalKey,
		ProcessedKey: row.ProcessedKey.String,
		CornerPoints: points,
		UploadTime:   row.UploadTime,
		UpdatedAt:    row.UpdatedAt,
	}
	if row.ProcessingTime.Valid {
		img.ProcessingTime = time.Duration(row.ProcessingTime.Float64 * float64(time.Second))
	}
	if row.ProcessedAt.Valid {
		t := row.ProcessedAt.Time
		img.ProcessedAt = &t
	}
	return img, nil
}

func marshalPoints(points []geometry.Point) ([]byte, error) {
	if points == nil {
		points = []geometry.Point{}
	}
	return jsoniter.Marshal(points)
}

func unmarshalPoints(raw []byte) ([]geometry.Point, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var points []geometry.Point
	if err := jsoniter.Unmarshal(raw, &points); err != nil {
		return nil, err
	}
	return points, nil
}
