package once

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/parquet-go/parquet-go"
)

// IndexRecord is one row of the flat frame index: a columnar summary of the
// infos file suitable for quick filtering and dataset statistics without
// parsing full annotation records.
type IndexRecord struct {
	FrameID    string   `json:"frame_id" parquet:"frame_id"`
	SequenceID string   `json:"sequence_id" parquet:"sequence_id"`
	LidarPath  string   `json:"lidar_path" parquet:"lidar_path"`
	Timestamp  int64    `json:"timestamp" parquet:"timestamp"`
	Annotated  bool     `json:"annotated" parquet:"annotated"`
	BoxCount   int32    `json:"box_count" parquet:"box_count"`
	Names      []string `json:"names" parquet:"names,list"`
}

// BuildIndex flattens loaded frame infos into index records.
func BuildIndex(infos []FrameInfo) []IndexRecord {
	records := make([]IndexRecord, len(infos))
	for i := range infos {
		info := &infos[i]
		rec := IndexRecord{
			FrameID:    info.FrameID,
			SequenceID: info.SequenceID,
			LidarPath:  info.LidarPath,
			Timestamp:  info.Timestamp,
			Annotated:  info.Annotated(),
		}
		if info.Annos != nil {
			rec.BoxCount = int32(len(info.Annos.Boxes3D))
			rec.Names = info.Annos.Names
		}
		records[i] = rec
	}
	return records
}

// WriteIndexParquet writes index records to a Parquet file at path.
func WriteIndexParquet(records []IndexRecord, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()

	writer := parquet.NewGenericWriter[IndexRecord](f)
	if _, err := writer.Write(records); err != nil {
		return fmt.Errorf("write index rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close index writer: %w", err)
	}

	log.Printf("index: wrote %d rows to %s", len(records), path)
	return nil
}

// ReadIndexParquet loads index records from a Parquet file.
func ReadIndexParquet(path string) ([]IndexRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat index file: %w", err)
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[IndexRecord](pf)
	defer reader.Close()

	var records []IndexRecord
	batch := make([]IndexRecord, 128)
	for {
		n, err := reader.Read(batch)
		records = append(records, batch[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read index rows: %w", err)
		}
	}
	return records, nil
}
