package index

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"dgenerate/crypto"
)

type parquetRow struct {
	TxHash      string `parquet:"name=tx_hash, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Height      int64  `parquet:"name=height, type=INT64"`
	Ledger      string `parquet:"name=ledger, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Recipient   string `parquet:"name=recipient, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Caller      string `parquet:"name=caller, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Amount      string `parquet:"name=amount, type=UTF8, encoding=PLAIN_DICTIONARY"`
	TotalMinted string `parquet:"name=total_minted, type=UTF8, encoding=PLAIN_DICTIONARY"`
	NextReward  string `parquet:"name=next_reward, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Halved      bool   `parquet:"name=halved, type=BOOLEAN"`
	PaidAt      string `parquet:"name=paid_at, type=UTF8, encoding=PLAIN_DICTIONARY"`
}

// ExportParquet writes the history of ledger (all ledgers when zero) to path
// and returns the number of rows written. Amounts are decimal strings since
// parquet has no unsigned 64-bit physical type.
func (s *Store) ExportParquet(ctx context.Context, path string, ledger crypto.Identity) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("index: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		file.Close()
		return 0, fmt.Errorf("index: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	count := 0
	err = s.Records(ctx, ledger, func(record *RewardRecord) error {
		row := &parquetRow{
			TxHash:      record.TxHash,
			Height:      int64(record.Height),
			Ledger:      record.Ledger,
			Recipient:   record.Recipient,
			Caller:      record.Caller,
			Amount:      strconv.FormatUint(record.Amount, 10),
			TotalMinted: strconv.FormatUint(record.TotalMinted, 10),
			NextReward:  strconv.FormatUint(record.NextReward, 10),
			Halved:      record.Halved,
			PaidAt:      record.PaidAt.UTC().Format(time.RFC3339),
		}
		if err := pw.Write(row); err != nil {
			return fmt.Errorf("index: parquet write: %w", err)
		}
		count++
		return nil
	})
	if err != nil {
		pw.WriteStop()
		file.Close()
		s.metrics.IncFailure("export")
		return 0, err
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return 0, fmt.Errorf("index: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("index: close parquet file: %w", err)
	}
	s.metrics.AddExported(count)
	return count, nil
}
