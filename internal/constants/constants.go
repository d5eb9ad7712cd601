// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort            = "8000"
	DefaultDBPath          = "erotify.db"
	DefaultOutputDir       = "../uploads"
	DefaultCatalogURL      = "http://localhost:3001"
	DefaultSpotDLPath      = "spotdl"
	DefaultSpotifyAuthURL  = "https://accounts.spotify.com/api/token"
	DefaultSpotifyAPIURL   = "https://api.spotify.com"
	DefaultWorkers         = 4
	DefaultDownloadTimeout = 300 * time.Second
	DefaultScanWindow      = 300 * time.Second
	DefaultCatalogTimeout  = 10 * time.Second
	DefaultAuthTimeout     = 10 * time.Second
	DefaultSearchTimeout   = 10 * time.Second
	DefaultCacheTTL        = 12 * time.Hour
	DefaultShutdownTimeout = 5 * time.Second
	DefaultRetryCount      = 3
	DefaultRetryBase       = 1 * time.Second
	DefaultCORSOrigins     = "http://localhost:3000,http://127.0.0.1:3000,http://localhost:3001"
)

// Downloader tool invocation
const (
	OutputFormat  = "mp3"
	OutputBitrate = "320k"
	ToolThreads   = "1"
	StagingDir    = ".staging"
)

// Job messages
const (
	MsgQueued          = "Download queued"
	MsgStarting        = "Starting download..."
	MsgDownloading     = "Downloading..."
	MsgAddingToLibrary = "Download completed, adding to library..."
	MsgCheckManually   = "Download completed (check uploads folder)"
	MsgTimeout         = "Download timeout"
	MsgCancelled       = "Download cancelled by user"
	MsgCompletedFmt    = "Successfully downloaded and added %d song(s) to library"
	MsgToolErrorFmt    = "SpotDL error: %s"
	MsgFaultFmt        = "Error: %s"
)

// Job progress checkpoints
const (
	ProgressStarting    = 5.0
	ProgressDownloading = 10.0
	ProgressReconciling = 80.0
	ProgressDone        = 100.0
)

// Catalog record defaults
const (
	UnknownArtist   = "Unknown Artist"
	DefaultAlbum    = "Downloaded"
	SourceTag       = "downloaded"
	CatalogAddPath  = "/api/music/add-downloaded"
	TitleSeparator  = " - "
	MaskedSecret    = "***masked***"
	MaxSearchResult = 20
)

// File Extensions
const (
	ExtFLAC = ".flac"
	ExtMP3  = ".mp3"
	ExtM4A  = ".m4a"
	ExtOPUS = ".opus"
	ExtOGG  = ".ogg"
	ExtWAV  = ".wav"
)

// AudioExtensions lists the file extensions the reconciler treats as downloaded songs.
var AudioExtensions = []string{ExtMP3, ExtFLAC, ExtM4A, ExtOPUS, ExtOGG, ExtWAV}

// File Permissions
const (
	DirPermissions  = 0755
	FilePermissions = 0644
)
