// Package files implements the PIN-based file exchange: issuing unique PIN
// codes against a persisted registry and binding/resolving uploaded file
// metadata to them.
package files

import "time"

// MaxTransferBytes is the Telegram bot API transfer limit. It is enforced when
// binding an upload and again on every resolve/download path.
const MaxTransferBytes = 50 * 1024 * 1024

// Kind identifies how a stored file must be resent.
type Kind string

const (
	KindDocument Kind = "document"
	KindPhoto    Kind = "photo"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
)

// Record binds a PIN to the metadata of one exchanged file. The FileID is the
// platform reference that allows resending the original file without
// re-uploading bytes. Records are immutable once finalized.
type Record struct {
	Pin         string    `db:"pin"`
	Status      string    `db:"status"`
	FileID      string    `db:"file_id"`
	DisplayName string    `db:"display_name"`
	MimeType    string    `db:"mime_type"`
	SizeBytes   int64     `db:"size_bytes"`
	Kind        Kind      `db:"kind"`
	OwnerID     int64     `db:"owner_id"`
	UploadedAt  time.Time `db:"uploaded_at"`
}

// Upload carries the attachment metadata captured at upload time.
type Upload struct {
	FileID      string
	DisplayName string
	MimeType    string
	SizeBytes   int64
	Kind        Kind
	OwnerID     int64
}
