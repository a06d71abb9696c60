package store

// BotDefinition is one trained bot, keyed by the opaque session key handed to
// clients. Definition is the serialized model bundle; the store never looks
// inside it.
type BotDefinition struct {
	ID         int32
	SessionKey string
	Language   string
	Definition []byte
	CreatedTs  int64
	UpdatedTs  int64
}

// FindBotDefinition is the filter for definition lookups.
type FindBotDefinition struct {
	ID         *int32
	SessionKey *string
	Limit      *int
}

// DeleteBotDefinition identifies a definition to remove.
type DeleteBotDefinition struct {
	SessionKey string
}
