package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// File identifies an on-device file by name.
type File struct {
	Name string
}

// encode writes a length-prefixed file name: 1 byte length, then the name
// bytes. Device file names are short (8.3-style) so a single length byte is
// always sufficient.
func (f File) encode() ([]byte, error) {
	if len(f.Name) > 0xFF {
		return nil, fmt.Errorf("codec: file name too long (%d bytes)", len(f.Name))
	}
	out := make([]byte, 0, 1+len(f.Name))
	out = append(out, byte(len(f.Name)))
	out = append(out, f.Name...)
	return out, nil
}

func decodeFile(body []byte) (File, []byte, error) {
	if len(body) < 1 {
		return File{}, nil, fmt.Errorf("codec: file: empty body")
	}
	n := int(body[0])
	if len(body) < 1+n {
		return File{}, nil, fmt.Errorf("codec: file: truncated name (want %d bytes)", n)
	}
	return File{Name: string(body[1 : 1+n])}, body[1+n:], nil
}

// FileRecord describes one file in a ListFilesResponse, as a CBOR map so
// the device firmware can add fields (e.g. a checksum or mtime) without
// breaking older hosts.
type FileRecord struct {
	Name string `cbor:"name"`
	Size uint32 `cbor:"size"`
}

// ListFiles requests the device's file table.
type ListFiles struct{}

func (ListFiles) Type() byte              { return TypeListFiles }
func (ListFiles) payload() ([]byte, error) { return nil, nil }

// ListFilesResponse carries the device's file table, CBOR-encoded.
type ListFilesResponse struct {
	Files []FileRecord
}

func (m ListFilesResponse) Type() byte { return TypeListFilesResponse }

func (m ListFilesResponse) payload() ([]byte, error) {
	if len(m.Files) == 0 {
		return nil, nil
	}
	return cbor.Marshal(m.Files)
}

func init() {
	registerDecoder(TypeListFiles, func(body []byte) (Message, error) {
		return ListFiles{}, nil
	})
	registerDecoder(TypeListFilesResponse, func(body []byte) (Message, error) {
		if len(body) == 0 {
			return ListFilesResponse{}, nil
		}
		var files []FileRecord
		if err := cbor.Unmarshal(body, &files); err != nil {
			return nil, fmt.Errorf("codec: ListFilesResponse: %w", err)
		}
		return ListFilesResponse{Files: files}, nil
	})
}

// DeleteFile requests deletion of a single named file.
type DeleteFile struct {
	File File
}

func (m DeleteFile) Type() byte              { return TypeDeleteFile }
func (m DeleteFile) payload() ([]byte, error) { return m.File.encode() }

// DeleteFileResponse acknowledges DeleteFile.
type DeleteFileResponse struct{}

func (DeleteFileResponse) Type() byte              { return TypeDeleteFileResponse }
func (DeleteFileResponse) payload() ([]byte, error) { return nil, nil }

func init() {
	registerDecoder(TypeDeleteFile, func(body []byte) (Message, error) {
		f, _, err := decodeFile(body)
		if err != nil {
			return nil, err
		}
		return DeleteFile{File: f}, nil
	})
	registerDecoder(TypeDeleteFileResponse, func(body []byte) (Message, error) {
		return DeleteFileResponse{}, nil
	})
}

// GetFile asks the device to begin streaming the named file over the bulk
// UART channel (see pkg/link's bulk-transfer mode). The file bytes
// themselves never pass through the codec.
type GetFile struct {
	File File
}

func (m GetFile) Type() byte              { return TypeGetFile }
func (m GetFile) payload() ([]byte, error) { return m.File.encode() }

// GetFileResponse is the typed response to GetFile. pkg/facade's download
// puts the reader in bulk mode before it sends GetFile, so every byte that
// follows the request is read as file payload, not decoded as a frame.
type GetFileResponse struct{}

func (GetFileResponse) Type() byte              { return TypeGetFileResponse }
func (GetFileResponse) payload() ([]byte, error) { return nil, nil }

func init() {
	registerDecoder(TypeGetFile, func(body []byte) (Message, error) {
		f, _, err := decodeFile(body)
		if err != nil {
			return nil, err
		}
		return GetFile{File: f}, nil
	})
	registerDecoder(TypeGetFileResponse, func(body []byte) (Message, error) {
		return GetFileResponse{}, nil
	})
}
