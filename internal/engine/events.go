package engine

import "github.com/saxa/pkbrokerd/internal/jobtypes"

// Event is the sealed set of values the Backend Engine broadcasts to its
// subscribers (the owning Transaction, and anyone else watching). It
// mirrors the event surface in spec.md §6.
type Event interface {
	isEngineEvent()
}

type JobStatusChanged struct{ Status jobtypes.Status }

func (JobStatusChanged) isEngineEvent() {}

type PercentChanged struct{ Percent uint }

func (PercentChanged) isEngineEvent() {}

type SubPercentChanged struct{ Percent uint }

func (SubPercentChanged) isEngineEvent() {}

type NoPercentUpdates struct{}

func (NoPercentUpdates) isEngineEvent() {}

type AllowInterruptChanged struct{ Allow bool }

func (AllowInterruptChanged) isEngineEvent() {}

type Package struct {
	Info    string
	ID      jobtypes.PackageID
	Summary string
}

func (Package) isEngineEvent() {}

type Description struct {
	ID      jobtypes.PackageID
	Licence string
	Group   jobtypes.GroupName
	Text    string
	URL     string
}

func (Description) isEngineEvent() {}

// UpdateDetail is synthesized by a plugin's GetUpdateDetail entry; it has
// no corresponding helper-protocol line, unlike the other package-shaped
// events.
type UpdateDetail struct {
	ID        jobtypes.PackageID
	Updates   []jobtypes.PackageID
	Obsoletes []jobtypes.PackageID
	URL       string
	Restart   string
	Text      string
}

func (UpdateDetail) isEngineEvent() {}

type RequireRestart struct {
	Kind   string
	Detail string
}

func (RequireRestart) isEngineEvent() {}

type ErrorCode struct {
	Code    jobtypes.ErrorCode
	Message string
}

func (ErrorCode) isEngineEvent() {}

// Finished is delivered exactly once, strictly last, for every job.
type Finished struct{ Exit jobtypes.Exit }

func (Finished) isEngineEvent() {}
