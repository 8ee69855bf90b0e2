package imageRepository

const (
	queryCreateImage = `
		INSERT INTO images (
			id,
			filename,
			content_type,
			format,
			width,
			height,
			size_bytes,
			original_key,
			upload_time,
			updated_at
		) VALUES (
			:id,
			:filename,
			:content_type,
			:format,
			:width,
			:height,
			:size_bytes,
			:original_key,
			:upload_time,
			:updated_at
		)
	`

	queryGetImageByID = `
		SELECT
			id,
			filename,
			content_type,
			format,
			width,
			height,
			size_bytes,
			original_key,
			processed_key,
			corner_points,
			processing_time,
			processed_at,
			upload_time,
			updated_at
		FROM images
		WHERE id = :id
	`

	queryUpdateProcessed = `
		UPDATE images
		SET
			processed_key = :processed_key,
			corner_points = :corner_points,
			processing_time = :processing_time,
			processed_at = :processed_at,
			updated_at = :updated_at
		WHERE id = :id
	`

	queryCreateProcessing = `
		INSERT INTO image_processings (
			id,
			image_id,
			corner_points,
			output_width,
			output_height,
			enhanced,
			status,
			error_message,
			processing_time,
			created_at
		) VALUES (
			:id,
			:image_id,
			:corner_points,
			:output_width,
			:output_height,
			:enhanced,
			:status,
			:error_message,
			:processing_time,
			:created_at
		)
	`

	queryGetProcessingsByImageID = `
		SELECT
			id,
			image_id,
			corner_points,
			output_width,
			output_height,
			enhanced,
			status,
			error_message,
			processing_time,
			created_at
		FROM image_processings
		WHERE image_id = :image_id
		ORDER BY created_at DESC
		LIMIT 50
	`
)
