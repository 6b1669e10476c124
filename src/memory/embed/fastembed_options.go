package embed

// FastEmbedOptions configures the optional local fastembed backend.
type FastEmbedOptions struct {
	// Model is the fastembed model name (default "BAAI/bge-small-en-v1.5").
	Model string
	// CacheDir is where model files are downloaded and cached.
	CacheDir string
	// MaxLength truncates inputs to this many tokens.
	MaxLength int
}
