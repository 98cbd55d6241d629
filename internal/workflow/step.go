package workflow

import (
	"context"
	"fmt"
	"slices"

	"github.com/ZebulonRouseFrantzich/kinstall/internal/device"
	"github.com/ZebulonRouseFrantzich/kinstall/internal/release"
)

// Step names.
const (
	StepMain              = "main"
	StepDownloadRelease   = "download-release"
	StepDownloadChecksum  = "download-checksum"
	StepDownloadSignature = "download-signature"
	StepDownloadPubkey    = "download-pubkey"
	StepVerify            = "verify"
	StepUnzip             = "unzip"
	StepFlash             = "flash"
	StepWarningWipe       = "warning-wipe"
	StepWipe              = "wipe"
	StepDone              = "done"
	StepError             = "error"

	// AnyStep in a predecessor set accepts every current step.
	AnyStep = "*"
)

// Update keys.
const (
	KeyDevice    = "device"
	KeyInfo      = "info"
	KeyArchive   = "archive"
	KeyChecksum  = "checksum"
	KeySignature = "signature"
	KeyPublicKey = "pubkey"
	KeyArtifact  = "artifact"
	KeyFirmware  = "firmware"
	KeyMessage   = "message"

	// Presentation keys some steps receive and ignore.
	KeyCanvas = "canvas"
	KeyLocale = "locale"
)

// Direction is the cosmetic direction a step is entered from.
type Direction string

const (
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// Step is one named stage of the workflow.
type Step interface {
	Name() string
	// Predecessors lists the steps that may update or enter this one.
	Predecessors() []string
	Direction() Direction
	// Update applies a keyed value. It may instantiate the step's engine and
	// returns that engine's construction error.
	Update(key string, value any) error
	// Enter starts the step. Background work it starts posts back to the loop.
	Enter(ctx context.Context) error
}

// accepts reports whether s may be reached while current is active.
func accepts(s Step, current string) bool {
	preds := s.Predecessors()
	return slices.Contains(preds, AnyStep) || slices.Contains(preds, current)
}

// base implements the bookkeeping shared by every step.
type base struct {
	name  string
	preds []string
	dir   Direction
}

func (b *base) Name() string           { return b.name }
func (b *base) Predecessors() []string { return b.preds }
func (b *base) Direction() Direction   { return b.dir }

// Params is the data carried from step to step.
type Params struct {
	Device    device.Device
	Info      *release.DownloadInfo
	Archive   string
	Checksum  string
	Signature string
	PublicKey string
	Artifact  *release.Artifact
	Firmware  string
	Message   string
}

// set applies one keyed update.
func (p *Params) set(key string, value any) error {
	var ok bool
	switch key {
	case KeyDevice:
		p.Device, ok = value.(device.Device)
	case KeyInfo:
		p.Info, ok = value.(*release.DownloadInfo)
	case KeyArchive:
		p.Archive, ok = value.(string)
	case KeyChecksum:
		p.Checksum, ok = value.(string)
	case KeySignature:
		p.Signature, ok = value.(string)
	case KeyPublicKey:
		p.PublicKey, ok = value.(string)
	case KeyArtifact:
		p.Artifact, ok = value.(*release.Artifact)
	case KeyFirmware:
		p.Firmware, ok = value.(string)
	case KeyMessage:
		p.Message, ok = value.(string)
	case KeyCanvas, KeyLocale:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if !ok {
		return fmt.Errorf("update %s: unexpected value type %T", key, value)
	}
	return nil
}

// forward sends every populated field to the step named to.
func (p *Params) forward(m *Manager, to string) error {
	updates := []struct {
		key   string
		value any
		set   bool
	}{
		{KeyInfo, p.Info, p.Info != nil},
		{KeyArchive, p.Archive, p.Archive != ""},
		{KeyChecksum, p.Checksum, p.Checksum != ""},
		{KeySignature, p.Signature, p.Signature != ""},
		{KeyPublicKey, p.PublicKey, p.PublicKey != ""},
		{KeyArtifact, p.Artifact, p.Artifact != nil},
		{KeyFirmware, p.Firmware, p.Firmware != ""},
		// Device last: executors are built once every other field is known.
		{KeyDevice, p.Device, p.Device != ""},
	}
	for _, u := range updates {
		if !u.set {
			continue
		}
		if err := m.Update(to, u.key, u.value); err != nil {
			return err
		}
	}
	return nil
}
