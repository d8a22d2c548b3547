package constants

// File upload constants
const (
	// MaxUploadSize is the maximum capture upload size in bytes (32MB)
	MaxUploadSize = 32 << 20

	// MaxPictureSize is the maximum reference picture size in bytes (10MB)
	MaxPictureSize = 10 << 20
)
