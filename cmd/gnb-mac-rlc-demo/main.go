// Command gnb-mac-rlc-demo drives a single-cell Scheduler plus one UE's RLC
// AM bearer through a fixed number of slots against synthetic PHY
// indications, to exercise the wiring end to end outside of a test binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/open-ran-go/gnb-mac-rlc/internal/buffer"
	"github.com/open-ran-go/gnb-mac-rlc/internal/executor"
	"github.com/open-ran-go/gnb-mac-rlc/internal/logging"
	"github.com/open-ran-go/gnb-mac-rlc/internal/metrics"
	"github.com/open-ran-go/gnb-mac-rlc/internal/rlc"
	"github.com/open-ran-go/gnb-mac-rlc/internal/sched"
	"github.com/open-ran-go/gnb-mac-rlc/internal/slot"
	"github.com/open-ran-go/gnb-mac-rlc/internal/ueconfig"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ueIndex  = 0
	ueRNTI   = 0x4601
	bearerID = 3
)

func main() {
	slots := flag.Int("slots", 40, "number of slots to advance")
	logLevel := flag.String("log-level", "info", "debug|info|warn|error")
	profileName := flag.String("profile", "fdd", "fdd|tdd")
	flag.Parse()

	logger := logging.NewDefaultLogger(parseLevel(*logLevel))
	reg := prometheus.NewRegistry()
	schedMetrics := metrics.NewScheduler(reg)
	rlcMetrics := metrics.NewRLC(reg)
	exporter := metrics.NewExporter(rlcMetrics)
	defer exporter.Close()

	profile := ueconfig.DefaultFDDPattern()
	if *profileName == "tdd" {
		profile = ueconfig.DefaultTDDPattern()
	}

	s, err := sched.NewScheduler(cellConfig(profile), schedMetrics, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cell configuration:", err)
		os.Exit(1)
	}

	if err := s.HandleUECreationRequest(sched.UECreationRequest{
		UEIndex: ueIndex, RNTI: ueRNTI,
		NofDLHarq: 8, NofULHarq: 8, NofHARQAckPUCCH: 4,
		Snapshot: ueSnapshot(profile),
	}); err != nil {
		fmt.Fprintln(os.Stderr, "ue creation:", err)
		os.Exit(1)
	}

	cellExec := executor.NewCellExecutor()
	ueExec := executor.NewUEExecutor()
	bearer := rlc.NewEntity(rlc.BearerConfig{
		Mode: rlc.ModeAM, SNSize: rlc.SN18,
		CellExec: cellExec, UEExec: ueExec,
		BufNotify: bufferStateLogger{logger: logger, exporter: exporter},
		Metrics:   rlcMetrics,
		Logger:    logger,
		Bearer:    bearerID,
	})

	sl := slot.New(profile.SCS, 0, 0)
	for i := 0; i < *slots; i++ {
		if i%10 == 0 {
			sdu := buffer.NewChain()
			payload := buffer.WrapBuffer([]byte(fmt.Sprintf("demo-sdu-%d", i)))
			sdu.Append(buffer.NewSlice(payload, 0, payload.Len()))
			bearer.HandleSDU(sdu, uint32(i))
		}
		cellExec.RunPending()
		ueExec.RunPending()
		s.HandleDLBufferStateIndication(ueIndex, ueconfig.LCID(bearerID), bearer.BufferState())

		res := s.SlotIndication(sl)
		for _, g := range res.PDSCH {
			if g.UEIndex != ueIndex {
				continue
			}
			if pdu := bearer.PullPDU(int(g.TBSBytes)); pdu != nil {
				logger.Log(logging.Entry{
					Level: logging.LevelInfo, Category: "demo", Message: "pdu pulled",
					Fields: map[string]any{"slot": sl.String(), "bytes": pdu.Len()},
				})
			}
		}

		sl = sl.Add(1)
	}
}

// periodAndULSlots derives a TDD/FDD period length and per-offset UL
// capability from a CellProfile, matching PUSCHTimeDomain's isULSlot input.
func periodAndULSlots(p ueconfig.CellProfile) (period int, isUL []bool) {
	if !p.TDD {
		return 1, []bool{true}
	}
	period = p.DLSlots + p.SpecialSlots + p.ULSlots
	isUL = make([]bool, period)
	for i := range isUL {
		isUL[i] = p.Direction(i) == ueconfig.SlotUL
	}
	return period, isUL
}

func cellConfig(profile ueconfig.CellProfile) sched.CellConfigurationRequest {
	symbols := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13}
	period, isUL := periodAndULSlots(profile)
	return sched.CellConfigurationRequest{
		CellID: 1, SCS: profile.SCS,
		NumPRBs: profile.NumPRBs, NumSymbols: profile.NumSymbols,
		CoresetID: 0, NumCCEs: 48,
		GridHorizonK: 16, PUCCHMaxPRB: 40,
		DLSymbols: symbols, ULSymbols: symbols,
		TDDPeriodSlots: period, IsULSlot: isUL, K2Candidates: []int{1, 4},
		SIMessages:               []sched.SIMessage{{ID: 0, PayloadBytes: 200, PeriodFrames: 8}},
		SIWindowCoeff:            2,
		DefaultPagingCycleFrames: 32,
		RARWindowSlots:           4, Msg3K2: 4, MaxMsg3Retx: 4,
		ConResTimeoutSlots: 35, MaxULHarqProcsCommon: 8,
	}
}

func ueSnapshot(profile ueconfig.CellProfile) *ueconfig.Snapshot {
	bwp := ueconfig.BWP{
		NumPRBs: profile.NumPRBs, NumSymbols: profile.NumSymbols,
		SearchSpace: ueconfig.SearchSpaceConfig{
			CoresetID:            0,
			CandidatesByAggLevel: map[uint8]uint8{1: 8, 2: 4, 4: 2, 8: 1},
		},
	}
	return &ueconfig.Snapshot{
		UEIndex: ueIndex, RNTI: ueRNTI, CellID: 1, SCS: profile.SCS,
		DedicatedBWP: bwp, FallbackBWP: bwp,
		K1Candidates: []int{4}, MinK2: 4,
		LogicalChannels: map[ueconfig.LCID]ueconfig.QoS{
			bearerID: {FiveQIPriority: 9, ARPPriority: 8, PDBMillis: 300},
		},
	}
}

func parseLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

type bufferStateLogger struct {
	logger   logging.Logger
	exporter *metrics.Exporter
}

func (b bufferStateLogger) OnBufferStateUpdate(bytes uint32) {
	b.logger.Log(logging.Entry{
		Level: logging.LevelDebug, Category: "demo", Message: "bearer buffer state",
		Fields: map[string]any{"bytes": bytes},
	})
	b.exporter.Submit(context.Background(), metrics.BufferStateEvent{Bearer: "b03", Bytes: bytes})
}
