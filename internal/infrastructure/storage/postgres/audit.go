package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"retailpos/internal/domain/audit"
)

const revisionTrailTable = "sys_revision_trail"

// CompressionAlgo specifies the compression algorithm used for a snapshot.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the snapshot size above which snapshots are stored
// zstd-compressed.
const DefaultCompressThreshold = 4 * 1024

var _ audit.Repository = (*AuditRepo)(nil)

// AuditRepo stores the revision trail. Large snapshots (documents with many
// lines) are kept zstd-compressed in snapshot_compressed.
type AuditRepo struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewAuditRepo creates the revision trail repository. threshold <= 0 selects
// DefaultCompressThreshold.
func NewAuditRepo(txManager *TxManager, threshold int) (*AuditRepo, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}
	return &AuditRepo{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: threshold,
	}, nil
}

// pack splits a snapshot into the stored (plain, compressed, algo) triple.
func (r *AuditRepo) pack(snapshot json.RawMessage) (json.RawMessage, []byte, CompressionAlgo) {
	if len(snapshot) <= r.compressThreshold {
		return snapshot, nil, CompressionNone
	}
	return nil, r.encoder.EncodeAll(snapshot, nil), CompressionZstd
}

// unpack restores the snapshot of a stored row.
func (r *AuditRepo) unpack(plain json.RawMessage, compressed []byte, algo CompressionAlgo) (json.RawMessage, error) {
	if algo != CompressionZstd {
		return plain, nil
	}
	out, err := r.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	return out, nil
}

// Record implements audit.Repository.
func (r *AuditRepo) Record(ctx context.Context, entry *audit.Entry) error {
	plain, compressed, algo := r.pack(entry.Snapshot)

	_, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO `+revisionTrailTable+` (
			id, document_id, number, revision, action, operator_id,
			snapshot, snapshot_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		entry.ID, entry.DocumentID, entry.Number, entry.Revision, entry.Action, entry.OperatorID,
		plain, compressed, algo, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert revision trail: %w", err)
	}
	return nil
}

// ListByNumber implements audit.Repository.
func (r *AuditRepo) ListByNumber(ctx context.Context, number string) ([]audit.Entry, error) {
	rows, err := r.txManager.GetQuerier(ctx).Query(ctx, `
		SELECT id, document_id, number, revision, action, operator_id,
		       snapshot, snapshot_compressed, compression_algo, created_at
		FROM `+revisionTrailTable+`
		WHERE number = $1
		ORDER BY revision, created_at
	`, number)
	if err != nil {
		return nil, fmt.Errorf("query revision trail: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			e          audit.Entry
			compressed []byte
			algo       CompressionAlgo
		)
		err := rows.Scan(
			&e.ID, &e.DocumentID, &e.Number, &e.Revision, &e.Action, &e.OperatorID,
			&e.Snapshot, &compressed, &algo, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trail entry: %w", err)
		}
		if e.Snapshot, err = r.unpack(e.Snapshot, compressed, algo); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
