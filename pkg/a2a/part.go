package a2a

import "encoding/base64"

/*
Part is a discriminated union over text, file and data parts. All optional
fields live in a single struct, which avoids custom JSON marshalling at the
cost of not enforcing the union at the type level: exactly one of Text,
File or Data should be populated according to the Type field.
*/
type Part struct {
	Type PartType `json:"type"`

	// Exactly one of the following should be populated depending on Type.
	Text string         `json:"text,omitempty"`
	File *FilePart      `json:"file,omitempty"`
	Data map[string]any `json:"data,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// PartType is the discriminator for a Part union.
type PartType string

const (
	PartTypeText PartType = "text"
	PartTypeFile PartType = "file"
	PartTypeData PartType = "data"
)

/*
FilePart carries file content either inline as base64 in Data (wire name
"bytes") or by reference in URI.
*/
type FilePart struct {
	Name     *string `json:"name,omitempty"`
	MimeType *string `json:"mimeType,omitempty"`
	Data     string  `json:"bytes,omitempty"`
	URI      string  `json:"uri,omitempty"`
}

/*
DisplayName returns the file name, or a generic fallback when the agent
did not provide one.
*/
func (file *FilePart) DisplayName() string {
	if file.Name != nil && *file.Name != "" {
		return *file.Name
	}

	return "file"
}

// Decode returns the inline content decoded from base64.
func (file *FilePart) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(file.Data)
}

func NewTextPart(text string) Part {
	return Part{
		Type: PartTypeText,
		Text: text,
	}
}

func NewFilePart(name string, mimeType string, data []byte) Part {
	return Part{
		Type: PartTypeFile,
		File: &FilePart{
			Name:     &name,
			MimeType: &mimeType,
			Data:     base64.StdEncoding.EncodeToString(data),
		},
	}
}

func NewDataPart(data map[string]any) Part {
	return Part{
		Type: PartTypeData,
		Data: data,
	}
}
