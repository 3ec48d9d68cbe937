// Package config holds the sync engine's deployment-wide constants (§6).
// It follows bee's cmd-level options-struct convention: one struct, package
// level defaults, no global mutable state, so the host integrator can
// override any value before constructing the engine.
package config

import "time"

// Config collects every tunable named in the specification's configuration
// section. Zero-value Config is not valid; use Default to get a populated
// struct and override individual fields.
type Config struct {
	ConsultPeerRecordsCount      int
	PickPeersOutOfRandomN        int
	PeerSyncRecordsFrequency     time.Duration
	TrackConfirmations           uint64
	MaxSharedIntervals           int
	ExtraBeforeCompaction        int
	ScanMissingChunksFrequency   time.Duration
	DiskPoolScanFrequency        time.Duration
	RemoveExpiredDataRootsFreq   time.Duration
	DiskPoolDataRootExpiration   time.Duration
	MaxDiskPoolDataRootBuffer    uint64
	MaxDiskPoolBuffer            uint64
	MaxServedTxDataSize          uint64
	DiskDataBuffer               uint64
	DiskSpaceCheckFrequency      time.Duration
	DefaultAdmitChunkTimeout     time.Duration
	NoteSizeBytes                int
}

const (
	mb = 1 << 20
)

// Default returns the configuration populated with the literal values named
// in the specification (§6). StoreBlocksBehindCurrent is passed in because
// TrackConfirmations is derived from it (2 * store_blocks_behind_current),
// a host-supplied consensus-layer parameter outside the core's concerns.
func Default(storeBlocksBehindCurrent uint64) Config {
	return Config{
		ConsultPeerRecordsCount:    5,
		PickPeersOutOfRandomN:      20,
		PeerSyncRecordsFrequency:   120 * time.Second,
		TrackConfirmations:         2 * storeBlocksBehindCurrent,
		MaxSharedIntervals:         10000,
		ExtraBeforeCompaction:      100,
		ScanMissingChunksFrequency: 2 * time.Second,
		DiskPoolScanFrequency:      120 * time.Second,
		RemoveExpiredDataRootsFreq: 60 * time.Second,
		DiskPoolDataRootExpiration: 2 * time.Hour,
		MaxDiskPoolDataRootBuffer:  50 * mb,
		MaxDiskPoolBuffer:          2000 * mb,
		MaxServedTxDataSize:        12 * mb,
		DiskDataBuffer:             500 * mb,
		DiskSpaceCheckFrequency:    30 * time.Second,
		DefaultAdmitChunkTimeout:   5 * time.Second,
		NoteSizeBytes:              32,
	}
}
