package weave

import "encoding/json"

type diskPoolDataRootValueWire struct {
	AccumulatedSize uint64   `json:"accumulated_size"`
	TimestampUs     uint64   `json:"timestamp_us"`
	TxIDs           []string `json:"tx_ids,omitempty"`
	NotSet          bool     `json:"not_set"`
}

// EncodeDiskPoolDataRootValue is the DiskPoolDataRoots value wire format,
// shared by pkg/diskpool and pkg/syncengine so both read the same bytes.
func EncodeDiskPoolDataRootValue(v DiskPoolDataRootValue) ([]byte, error) {
	w := diskPoolDataRootValueWire{AccumulatedSize: v.AccumulatedSize, TimestampUs: v.TimestampUs, NotSet: v.Confirmed()}
	for id := range v.TxIDs {
		w.TxIDs = append(w.TxIDs, id)
	}
	return json.Marshal(w)
}

// DecodeDiskPoolDataRootValue parses EncodeDiskPoolDataRootValue's format.
func DecodeDiskPoolDataRootValue(b []byte) (DiskPoolDataRootValue, error) {
	var w diskPoolDataRootValueWire
	if err := json.Unmarshal(b, &w); err != nil {
		return DiskPoolDataRootValue{}, err
	}
	v := DiskPoolDataRootValue{AccumulatedSize: w.AccumulatedSize, TimestampUs: w.TimestampUs}
	if !w.NotSet {
		v.TxIDs = make(map[string]struct{}, len(w.TxIDs))
		for _, id := range w.TxIDs {
			v.TxIDs[id] = struct{}{}
		}
	}
	return v, nil
}

type diskPoolChunkValueWire struct {
	RelativeEndOffset uint64 `json:"relative_end_offset"`
	ChunkSize         uint64 `json:"chunk_size"`
	DataRoot          Hash   `json:"data_root"`
	TxSize            uint64 `json:"tx_size"`
}

// EncodeDiskPoolChunkValue is the DiskPoolChunksIndex value wire format.
func EncodeDiskPoolChunkValue(v DiskPoolChunkValue) ([]byte, error) {
	return json.Marshal(diskPoolChunkValueWire{
		RelativeEndOffset: v.RelativeEndOffset, ChunkSize: v.ChunkSize, DataRoot: v.DataRoot, TxSize: v.TxSize,
	})
}

// DecodeDiskPoolChunkValue parses EncodeDiskPoolChunkValue's format.
func DecodeDiskPoolChunkValue(b []byte) (DiskPoolChunkValue, error) {
	var w diskPoolChunkValueWire
	if err := json.Unmarshal(b, &w); err != nil {
		return DiskPoolChunkValue{}, err
	}
	return DiskPoolChunkValue{
		RelativeEndOffset: w.RelativeEndOffset, ChunkSize: w.ChunkSize, DataRoot: w.DataRoot, TxSize: w.TxSize,
	}, nil
}
