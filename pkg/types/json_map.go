package types

// JSONMap is a loosely typed payload persisted as jsonb.
type JSONMap map[string]any
