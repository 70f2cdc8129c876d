// Package types holds the data model shared across the scanner, migration,
// backup, recovery, and journal subsystems.
//
// These structs are plain data: construction and mutation rules live with
// the package that owns the invariant (scanner owns DirectoryNode, the
// registry owns BackupRecord, and so on). Treat a value received from
// another package as read-only unless that package's doc comment says
// otherwise.
package types

import "time"

// DirectoryNode is the result of sizing one directory.
//
// Invariants (enforced by the scanner, not by this type):
//   - Size == sum of direct file sizes + sum of child.Size.
//   - FileCount counts every descendant regular file plus every descendant
//     directory.
//   - Subdirectories is sorted by Size descending.
//   - SizePercentage is populated by the parent; it is 0 at the scan root.
//   - A node beyond max_depth is a stub: zero Size/FileCount, no children,
//     but a truthful Path/Name.
type DirectoryNode struct {
	Path           string
	Name           string
	Size           int64
	FileCount      int64
	Subdirectories []*DirectoryNode
	LastModified   *time.Time
	IsLargeFolder  bool
	SizePercentage float64
}

// AppDataBucket names one of the three first-level subtrees under the
// per-user application-data root.
type AppDataBucket string

const (
	BucketLocal    AppDataBucket = "Local"
	BucketLocalLow AppDataBucket = "LocalLow"
	BucketRoaming  AppDataBucket = "Roaming"
)

// AppDataItemKind distinguishes a first-level directory entry from a file.
type AppDataItemKind string

const (
	AppDataKindDirectory AppDataItemKind = "directory"
	AppDataKindFile      AppDataItemKind = "file"
)

// AppDataItem is one first-level entry under Local, LocalLow, or Roaming.
//
// Invariant: Size is the recursive aggregate for directories and the file
// length for files; IsLarge holds iff Size >= the configured threshold.
type AppDataItem struct {
	Path           string
	Name           string
	Size           int64
	Kind           AppDataItemKind
	Bucket         AppDataBucket
	IsLarge        bool
	SizePercentage float64
}

// AppDataReport is the outcome of an App-Data Scanner run (C3).
type AppDataReport struct {
	BucketPaths map[AppDataBucket]string
	BucketSizes map[AppDataBucket]int64
	Items       []AppDataItem
	LargeItems  []AppDataItem
	ElapsedMS   int64
}

// AppDataEventKind enumerates the streaming events the App-Data Scanner's
// streaming variant emits.
type AppDataEventKind string

const (
	AppDataEventItemFound    AppDataEventKind = "ItemFound"
	AppDataEventBucketDone   AppDataEventKind = "BucketDone"
	AppDataEventScanComplete AppDataEventKind = "ScanComplete"
	AppDataEventScanError    AppDataEventKind = "ScanError"
)

// AppDataEvent is one message on the App-Data Scanner's streaming channel.
type AppDataEvent struct {
	Kind        AppDataEventKind
	Item        *AppDataItem
	Bucket      AppDataBucket
	BucketBytes int64
	BucketCount int64
	Report      *AppDataReport
	Message     string
}

// ScanProgress is the shared, mutable snapshot a scan publishes as it runs.
//
// Invariants (enforced by the scanner, the sole writer): ProcessedFiles and
// ProcessedDirectories are monotone-non-decreasing within one scan;
// ProgressPercent <= 100; FilesPerSecond/ETASeconds are derived from
// (processed, total, elapsed) and are zero until StartedAt is set.
type ScanProgress struct {
	CurrentPath          string
	ProcessedFiles       int64
	TotalFilesEstimate   int64
	ProgressPercent      float64
	ProcessedDirectories int64
	TotalDirectories     int64
	CurrentDirectory     string
	StartedAt            *time.Time
	FilesPerSecond       float64
	ETASeconds           float64
	LargeFoldersFound    int64
}

// MigrationOptions is the request driving the Migration Pipeline (C7).
type MigrationOptions struct {
	Source        string
	Target        string
	CreateSymlink bool
	DeleteSource  bool
}

// MigrationResult is the outcome of a migration.
type MigrationResult struct {
	Success    bool
	Message    string
	TargetPath string
	LinkPath   string
}

// BackupRecord describes one copy of a source subtree kept for rollback (C5).
//
// Invariants (enforced by the registry): BackupPath exists on disk iff
// Active; Active transitions only true -> false; a record older than the
// configured retention becomes eligible for deletion.
type BackupRecord struct {
	BackupID      string
	OriginalPath  string
	BackupPath    string
	SizeBytes     int64
	CreatedAt     time.Time
	OperationType string
	Active        bool
}

// ErrorKind is the closed taxonomy every raw I/O error is mapped to (C6).
type ErrorKind string

const (
	ErrorIO                    ErrorKind = "IoError"
	ErrorPermissionDenied      ErrorKind = "PermissionDenied"
	ErrorPathNotFound          ErrorKind = "PathNotFound"
	ErrorPathAlreadyExists     ErrorKind = "PathAlreadyExists"
	ErrorInvalidPath           ErrorKind = "InvalidPath"
	ErrorOperationCancelled    ErrorKind = "OperationCancelled"
	ErrorDiskSpaceInsufficient ErrorKind = "DiskSpaceInsufficient"
	ErrorSystemProtection      ErrorKind = "SystemProtection"
	ErrorNetwork               ErrorKind = "NetworkError"
	ErrorTimeout               ErrorKind = "Timeout"
	ErrorUnknown               ErrorKind = "Unknown"
)

// Severity ranks how serious a classified error is.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// RecoveryStrategy is the action chosen by the Strategy Engine for one error.
type RecoveryStrategy string

const (
	StrategyRetry    RecoveryStrategy = "Retry"
	StrategySkip     RecoveryStrategy = "Skip"
	StrategyAbort    RecoveryStrategy = "Abort"
	StrategyRollback RecoveryStrategy = "Rollback"
	StrategyManual   RecoveryStrategy = "Manual"
)

// RecoveryState is the outcome of handling one error through C6.
type RecoveryState struct {
	OperationID string
	Kind        ErrorKind
	Severity    Severity
	Strategy    RecoveryStrategy
	RetryCount  int
	Recovered   bool
	Message     string
	BackupID    string
	Timestamp   time.Time
}

// OperationType enumerates the lifecycle events the Journal (C8) records.
type OperationType string

const (
	OpScan          OperationType = "Scan"
	OpMigrate       OperationType = "Migrate"
	OpDelete        OperationType = "Delete"
	OpCreateSymlink OperationType = "CreateSymlink"
	OpValidate      OperationType = "Validate"
	OpCancel        OperationType = "Cancel"
	OpError         OperationType = "Error"
)

// OperationStatus enumerates the lifecycle states of one OperationRecord.
//
// Invariant: transitions obey Started -> InProgress* -> (Completed | Failed
// | Cancelled); a terminal status is never rewritten.
type OperationStatus string

const (
	StatusStarted    OperationStatus = "Started"
	StatusInProgress OperationStatus = "InProgress"
	StatusCompleted  OperationStatus = "Completed"
	StatusFailed     OperationStatus = "Failed"
	StatusCancelled  OperationStatus = "Cancelled"
)

// OperationRecord is one append-only Journal entry (C8).
type OperationRecord struct {
	ID         string
	Timestamp  time.Time
	Type       OperationType
	Status     OperationStatus
	Source     string
	Target     string
	Details    string
	Error      string
	DurationMS int64
	FileCount  int64
	TotalSize  int64
	User       string
	SessionID  string
}

// JournalStats is the aggregate computed by the Journal over a set of
// records (C8).
type JournalStats struct {
	Total            int
	Completed        int
	Failed           int
	Cancelled        int
	BytesTransferred int64
	FilesProcessed   int64
	DurationMS       int64
	AvgDurationMS    float64
	SuccessRatePct   float64
	AvgSpeedMBps     float64
}

// CacheEntry is one Performance Optimizer (C10) directory-cache record.
type CacheEntry struct {
	Path          string
	FileCount     int64
	TotalSize     int64
	CachedAt      time.Time
	IsLargeFolder bool
}

// PerformanceStats is the snapshot returned by the Performance Optimizer.
type PerformanceStats struct {
	MemoryUsageMB    float64
	MemoryPeakMB     float64
	CacheHitRatePct  float64
	CacheSize        int
	ActiveOperations int
}

// AppConfig is the process-wide configuration object, populated by
// internal/config and threaded explicitly into every subsystem. Treat it as
// read-only after construction.
//
// Design goals:
//   - Keep runtime behavior configurable via config.ini (located with the
//     --config-dir flag).
//   - Make unattended runs predictable and safe.
//   - Avoid globals by threading config explicitly.
type AppConfig struct {
	// Scanning (C2/C3).
	MaxDepth              int
	LargeFolderThreshold  int64
	SystemDriveMode       bool
	AppDataMaxDepth       int
	AppDataSortDescending bool

	// Backup / recovery (C5/C6).
	MaxRollbackSizeMB     int64
	BackupRetentionHrs    int
	EnableAutoRecovery    bool
	EnablePartialRollback bool
	RetryDelayMS          int

	// Journal (C8).
	JournalDir      string
	JournalKeepDays int

	// Logging / config locations.
	ConfigDir string
	LogDir    string
	NoLogs    bool

	// Performance (C10).
	MaxConcurrentOperations int
	DirectoryCacheSize      int
	MaxMemoryUsageMB        int

	// Identity, threaded into every OperationRecord.
	User      string
	SessionID string
}
