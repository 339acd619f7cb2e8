package domain

import "errors"

var (
	ErrNotFound         = errors.New("job_not_found")
	ErrInvalidPetType   = errors.New("invalid_pet_type")
	ErrInvalidImageKeys = errors.New("invalid_image_keys")
	ErrInvalidCursor    = errors.New("invalid_cursor")
	ErrInvalidJobID     = errors.New("invalid_job_id")
)
