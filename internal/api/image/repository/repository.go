package imageRepository

import (
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"Unwarp/internal/entity"
)

type SQLExecutor interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	Rebind(query string) string
}

func New(db *sqlx.DB, log *logrus.Logger) Repository {
	return &repository{
		DB:  db,
		log: log,
	}
}

type repository struct {
	DB  *sqlx.DB
	log *logrus.Logger
}

type Repository interface {
	NewClient(tx bool) (Client, error)
}

func (r *repository) NewClient(tx bool) (Client, error) {
	var sqlExecutor SQLExecutor
	var commitFunc, rollbackFunc func() error

	sqlExecutor = r.DB

	if tx {
		txx, err := r.DB.Beginx()
		if err != nil {
			return Client{}, err
		}

		sqlExecutor = txx
		commitFunc = txx.Commit
		rollbackFunc = txx.Rollback
	} else {
		commitFunc = func() error { return nil }
		rollbackFunc = func() error { return nil }
	}

	return Client{
		Images:      &imageRepository{q: sqlExecutor, log: r.log},
		Processings: &processingRepository{q: sqlExecutor, log: r.log},
		Commit:      commitFunc,
		Rollback:    rollbackFunc,
	}, nil
}

type ImageStore interface {
	CreateImage(c context.Context, img entity.Image) error
	GetImageByID(c context.Context, id string) (entity.Image, error)
	UpdateProcessed(c context.Context, img entity.Image) error
}

type ProcessingStore interface {
	CreateProcessing(c context.Context, p entity.ImageProcessing) error
	GetProcessingsByImageID(c context.Context, imageID string) ([]entity.ImageProcessing, error)
}

type Client struct {
	Images      ImageStore
	Processings ProcessingStore

	Commit   func() error
	Rollback func() error
}

type imageRepository struct {
	q   SQLExecutor
	log *logrus.Logger
}

type processingRepository struct {
	q   SQLExecutor
	log *logrus.Logger
}
