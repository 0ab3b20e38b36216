package once

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DatasetConfig is the JSON configuration for a dataset split. All fields
// are optional pointers so partial configs overlay package defaults; use the
// Get* accessors to read effective values.
type DatasetConfig struct {
	DataRoot        *string   `json:"data_root,omitempty"`
	InfosPath       *string   `json:"infos_path,omitempty"`
	Split           *string   `json:"split,omitempty"`
	PtsPrefix       *string   `json:"pts_prefix,omitempty"`
	Classes         []string  `json:"classes,omitempty"`
	Cameras         []string  `json:"cameras,omitempty"`
	PointCloudRange []float64 `json:"point_cloud_range,omitempty"`
	FilterEmptyGT   *bool     `json:"filter_empty_gt,omitempty"`
	TestMode        *bool     `json:"test_mode,omitempty"`
}

// EmptyDatasetConfig returns a DatasetConfig with every field unset, so all
// accessors fall back to defaults.
func EmptyDatasetConfig() *DatasetConfig {
	return &DatasetConfig{}
}

// LoadDatasetConfig loads a DatasetConfig from a JSON file. The file must
// have a .json extension and stay under a small size cap; omitted fields
// keep their defaults, so partial configs are safe.
func LoadDatasetConfig(path string) (*DatasetConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyDatasetConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks structural constraints on the configured values.
func (c *DatasetConfig) Validate() error {
	if c.PointCloudRange != nil && len(c.PointCloudRange) != 6 {
		return fmt.Errorf("point_cloud_range must have 6 values, got %d", len(c.PointCloudRange))
	}
	if c.Split != nil {
		switch *c.Split {
		case "train", "val", "test", "raw":
		default:
			return fmt.Errorf("unknown split %q", *c.Split)
		}
	}
	return nil
}

// GetDataRoot returns the dataset root directory (default ".").
func (c *DatasetConfig) GetDataRoot() string {
	if c.DataRoot != nil {
		return *c.DataRoot
	}
	return "."
}

// GetInfosPath returns the infos file path, defaulting to
// <data_root>/once_infos_<split>.json.
func (c *DatasetConfig) GetInfosPath() string {
	if c.InfosPath != nil {
		return *c.InfosPath
	}
	return filepath.Join(c.GetDataRoot(), "once_infos_"+c.GetSplit()+".json")
}

// GetSplit returns the split name (default "train").
func (c *DatasetConfig) GetSplit() string {
	if c.Split != nil {
		return *c.Split
	}
	return "train"
}

// GetPtsPrefix returns the point-cloud file prefix (default "velodyne").
func (c *DatasetConfig) GetPtsPrefix() string {
	if c.PtsPrefix != nil {
		return *c.PtsPrefix
	}
	return "velodyne"
}

// GetClasses returns the configured class list or ClassNames.
func (c *DatasetConfig) GetClasses() []string {
	if c.Classes != nil {
		return c.Classes
	}
	return ClassNames
}

// GetCameras returns the configured camera list or CameraList.
func (c *DatasetConfig) GetCameras() []string {
	if c.Cameras != nil {
		return c.Cameras
	}
	return CameraList
}

// GetPointCloudRange returns the configured limit range or the default.
func (c *DatasetConfig) GetPointCloudRange() [6]float64 {
	if len(c.PointCloudRange) == 6 {
		var r [6]float64
		copy(r[:], c.PointCloudRange)
		return r
	}
	return DefaultPointCloudRange
}

// GetFilterEmptyGT reports whether frames with no valid labels are skipped
// at train time (default true).
func (c *DatasetConfig) GetFilterEmptyGT() bool {
	if c.FilterEmptyGT != nil {
		return *c.FilterEmptyGT
	}
	return true
}

// GetTestMode reports whether annotation info is withheld from samples
// (default false).
func (c *DatasetConfig) GetTestMode() bool {
	if c.TestMode != nil {
		return *c.TestMode
	}
	return false
}
