package quest

import "errors"

var (
	ErrClueNotFound        = errors.New("clue not found")
	ErrQuestNotFound       = errors.New("quest not found")
	ErrProfileNotFound     = errors.New("profile not found")
	ErrTeamNotFound        = errors.New("team not found")
	ErrMalformedPuzzleData = errors.New("malformed puzzle data")
	ErrInvalidContent      = errors.New("invalid content")
	ErrOutOfRange          = errors.New("player is not within range of the clue")
	ErrEvidenceMismatch    = errors.New("evidence does not match clue type")
	ErrStorageConflict     = errors.New("storage conflict")
	ErrTeamNameTaken       = errors.New("team name already taken")
	ErrAlreadyOnTeam       = errors.New("player already on a team")
	ErrNotTeamMember       = errors.New("player is not a member of the team")
	ErrProfileExists       = errors.New("profile already exists")
	ErrInsufficientStamina = errors.New("not enough stamina")

	// ErrRewardDeferred wraps a ledger failure that happened after a durable
	// progress transition. The transition stands; the credit is reconciled later.
	ErrRewardDeferred = errors.New("reward credit deferred")
)

type ErrorClass int

const (
	ClassInternal ErrorClass = iota
	ClassNotFound
	ClassValidation
	ClassConflict
	ClassDependentFailure
	ClassForbidden
)

// Classify maps an error onto the taxonomy callers act on: not-found and
// validation errors are returned as-is, conflicts may be retried.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassInternal
	case errors.Is(err, ErrRewardDeferred):
		return ClassDependentFailure
	case errors.Is(err, ErrClueNotFound),
		errors.Is(err, ErrQuestNotFound),
		errors.Is(err, ErrTeamNotFound),
		errors.Is(err, ErrProfileNotFound):
		return ClassNotFound
	case errors.Is(err, ErrMalformedPuzzleData),
		errors.Is(err, ErrInvalidContent),
		errors.Is(err, ErrOutOfRange),
		errors.Is(err, ErrEvidenceMismatch),
		errors.Is(err, ErrInsufficientStamina):
		return ClassValidation
	case errors.Is(err, ErrStorageConflict),
		errors.Is(err, ErrTeamNameTaken),
		errors.Is(err, ErrAlreadyOnTeam),
		errors.Is(err, ErrProfileExists):
		return ClassConflict
	case errors.Is(err, ErrNotTeamMember):
		return ClassForbidden
	}
	return ClassInternal
}
