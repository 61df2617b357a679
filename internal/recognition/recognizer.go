package recognition

// Recognizer defines the interface for image text recognition
type Recognizer interface {
	// RecognizeText transcribes the text visible in a meter or receipt photo
	RecognizeText(imageData []byte, contentType string) (string, error)
	// Close closes the recognizer and releases resources
	Close() error
}
