package s4_labels

import (
	"time"

	"github.com/wonny/leadscore/internal/contracts"
	"github.com/wonny/leadscore/internal/s2_snapshots"
	"github.com/wonny/leadscore/pkg/logger"
)

// Config holds label options
type Config struct {
	HorizonDays int
}

// Assigner sets the forward-looking conversion label
// ⭐ SSOT: 라벨 정의는 여기서만 (사용량 데이터 참조 금지)
type Assigner struct {
	config Config
	logger *logger.Logger
}

// NewAssigner creates a new label assigner
func NewAssigner(config Config, log *logger.Logger) *Assigner {
	return &Assigner{
		config: config,
		logger: log.WithComponent(contracts.StageLabels.String()),
	}
}

// Label returns 1 iff conversion exists and
// snapshotDate < conversion <= snapshotDate + horizonDays.
func Label(snapshotDate time.Time, conversion *time.Time, horizonDays int) int {
	if conversion == nil {
		return 0
	}

	snapshotDay := contracts.Day(snapshotDate)
	conv := contracts.Day(*conversion)
	horizonEnd := contracts.AddDays(snapshotDay, horizonDays)

	if snapshotDay.Before(conv) && !conv.After(horizonEnd) {
		return 1
	}
	return 0
}

// Assign labels every snapshot of one entity in place. A snapshot on/after
// conversion means an earlier stage let leakage through: it is returned as a
// LeakageViolation, never filtered here, and no snapshot is labeled.
func (a *Assigner) Assign(snapshots []contracts.Snapshot, entity *contracts.Entity) (int, error) {
	if err := s2_snapshots.CheckLeakage(snapshots, entity); err != nil {
		return 0, err
	}

	positives := 0
	for i := range snapshots {
		s := &snapshots[i]
		s.Label = Label(s.Date, entity.ConversionDate, a.config.HorizonDays)
		positives += s.Label
	}

	return positives, nil
}
