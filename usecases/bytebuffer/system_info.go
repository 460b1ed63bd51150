//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package bytebuffer

// SystemInfo is a point-in-time snapshot of the pool occupancy. The counters
// are read one after the other without locking, so under concurrent use the
// snapshot is best effort, across classes and within a single class.
type SystemInfo struct {
	PoolName          string      `json:"pool_name" yaml:"pool_name"`
	TotalQueued       int         `json:"total_queued" yaml:"total_queued"`
	TotalTracked      int         `json:"total_tracked" yaml:"total_tracked"`
	OverallTotalBytes int64       `json:"overall_total_bytes" yaml:"overall_total_bytes"`
	Classes           []ClassInfo `json:"classes" yaml:"classes"`
}

// ClassInfo describes one size class. Classes that are not pooled report
// zero for every counter.
type ClassInfo struct {
	Capacity int `json:"capacity" yaml:"capacity"`
	// Available buffers are queued and ready to be handed out.
	Available int `json:"available" yaml:"available"`
	// Tracked counts every buffer of the class, queued or on loan.
	Tracked       int   `json:"tracked" yaml:"tracked"`
	OnLoan        int   `json:"on_loan" yaml:"on_loan"`
	ConfiguredMax int   `json:"configured_max" yaml:"configured_max"`
	TotalBytes    int64 `json:"total_bytes" yaml:"total_bytes"`
}

func (p *BufferPool) SystemInfo() SystemInfo {
	info := SystemInfo{
		PoolName: p.name,
		Classes:  make([]ClassInfo, 0, p.table.Len()),
	}

	for _, sc := range p.table.classes {
		class := ClassInfo{
			Capacity:      sc.capacity,
			ConfiguredMax: sc.maxCount,
		}
		if sc.pooled() {
			// Best effort, even within one class. Reading the queue first
			// keeps a concurrent create from making available exceed
			// tracked, but a Clear between the two reads still understates
			// OnLoan.
			class.Available = sc.queued()
			class.Tracked = int(sc.tracked.Load())
			class.OnLoan = max(class.Tracked-class.Available, 0)
			class.TotalBytes = int64(class.Tracked) * int64(sc.capacity)
		}

		info.TotalQueued += class.Available
		info.TotalTracked += class.Tracked
		info.OverallTotalBytes += class.TotalBytes
		info.Classes = append(info.Classes, class)
	}

	return info
}
