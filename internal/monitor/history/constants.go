package history

// DefaultMaxSamples bounds a store created with a non-positive size.
const DefaultMaxSamples = 120
