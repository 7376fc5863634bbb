package dictionary

var (
	// ErrEmptyTerm is returned when a term is blank after normalization.
	ErrEmptyTerm = &Error{"term must be non-empty"}
	// ErrEmptyDefinition is returned when a definition text is blank.
	ErrEmptyDefinition = &Error{"definition must be non-empty"}
	// ErrInvalidTier is returned for tier names outside unknown/semiknown/known/none.
	ErrInvalidTier = &Error{"invalid tier"}
	// ErrNoLiveDefinitions is returned when a term without live definitions
	// would be classified semiknown or known.
	ErrNoLiveDefinitions = &Error{"term has no live definitions"}
	// ErrUnsupportedVersion is returned for dictionary files written by a newer schema.
	ErrUnsupportedVersion = &Error{"unsupported dictionary schema version"}
)

// Error is the typed error for dictionary operations.
type Error struct{ msg string }

func (e *Error) Error() string { return e.msg }
