package storage

import (
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/document"
)

// Encode serializes a document.
func Encode(doc *document.Document) ([]byte, error) {
	if doc == nil {
		return nil, document.ErrNoRoot
	}
	data, err := sonic.ConfigStd.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// Decode parses and validates a stored document.
func Decode(data []byte) (*document.Document, error) {
	var doc document.Document
	if err := sonic.ConfigStd.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}
