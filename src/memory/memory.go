package memory

import (
	embedpkg "github.com/engram-ai/engram/src/memory/embed"
	extractpkg "github.com/engram-ai/engram/src/memory/extract"
	indexpkg "github.com/engram-ai/engram/src/memory/index"
	injectpkg "github.com/engram-ai/engram/src/memory/inject"
	"github.com/engram-ai/engram/src/memory/model"
	relationpkg "github.com/engram-ai/engram/src/memory/relation"
	resolvepkg "github.com/engram-ai/engram/src/memory/resolve"
	storepkg "github.com/engram-ai/engram/src/memory/store"
)

// Type aliases exposing the memory subsystem through a single import.
type (
	MemoryRecord  = model.MemoryRecord
	MemoryVersion = model.MemoryVersion
	MemoryType    = model.MemoryType
	SourceType    = model.SourceType
	Relationship  = model.Relationship
	RelationKind  = model.RelationKind

	Store         = storepkg.Store
	ListFilter    = storepkg.ListFilter
	UpdateRequest = storepkg.UpdateRequest
	Order         = storepkg.Order
	InMemoryStore = storepkg.InMemoryStore
	PostgresStore = storepkg.PostgresStore
	MongoStore    = storepkg.MongoStore

	VectorIndex   = indexpkg.VectorIndex
	Entry         = indexpkg.Entry
	Filter        = indexpkg.Filter
	InMemoryIndex = indexpkg.InMemoryIndex
	ChromemIndex  = indexpkg.ChromemIndex
	QdrantIndex   = indexpkg.QdrantIndex

	Embedder      = embedpkg.Embedder
	DummyEmbedder = embedpkg.DummyEmbedder

	Graph         = relationpkg.Graph
	InMemoryGraph = relationpkg.InMemoryGraph
	Neo4jGraph    = relationpkg.Neo4jGraph

	Candidate       = resolvepkg.Candidate
	Decision        = resolvepkg.Decision
	Resolution      = resolvepkg.Resolution
	ResolverOptions = resolvepkg.Options

	Pipeline = extractpkg.Pipeline
	Turn     = extractpkg.Turn
	Result   = extractpkg.Result

	Injector = injectpkg.Injector
)

const (
	TypePersonalInfo        = model.TypePersonalInfo
	TypePreference          = model.TypePreference
	TypeFact                = model.TypeFact
	TypeTask                = model.TypeTask
	TypeGoal                = model.TypeGoal
	TypeRelationship        = model.TypeRelationship
	TypeConversationSummary = model.TypeConversationSummary
	TypeSkill               = model.TypeSkill

	RelationRelatedTo   = model.RelationRelatedTo
	RelationContradicts = model.RelationContradicts
	RelationSupersedes  = model.RelationSupersedes
	RelationDerivedFrom = model.RelationDerivedFrom
	RelationPartOf      = model.RelationPartOf

	DecisionCreate = resolvepkg.DecisionCreate
	DecisionSkip   = resolvepkg.DecisionSkip
	DecisionUpdate = resolvepkg.DecisionUpdate
)

var (
	ErrNotFound        = storepkg.ErrNotFound
	ErrUnauthorized    = storepkg.ErrUnauthorized
	ErrNoContent       = embedpkg.ErrNoContent
	ErrNotSupported    = embedpkg.ErrNotSupported
	ErrEmbeddingFailed = embedpkg.ErrEmbeddingFailed
	ErrSyncDivergence  = extractpkg.ErrSyncDivergence

	NewInMemoryStore = storepkg.NewInMemoryStore
	NewPostgresStore = storepkg.NewPostgresStore
	NewMongoStore    = storepkg.NewMongoStore

	NewInMemoryIndex = indexpkg.NewInMemoryIndex
	NewChromemIndex  = indexpkg.NewChromemIndex
	NewQdrantIndex   = indexpkg.NewQdrantIndex

	AutoEmbedder        = embedpkg.AutoEmbedder
	DummyEmbedding      = embedpkg.DummyEmbedding
	NewOpenAIEmbedder   = embedpkg.NewOpenAIEmbedder
	NewGeminiEmbedder   = embedpkg.NewGeminiEmbedder
	NewOllamaEmbedder   = embedpkg.NewOllamaEmbedder
	NewVoyageEmbedder   = embedpkg.NewVoyageEmbedder
	NewFastEmbedder     = embedpkg.NewFastEmbedder
	NewCachedEmbedder   = embedpkg.NewCachedEmbedder
	NewFallbackEmbedder = embedpkg.NewFallbackEmbedder

	NewInMemoryGraph = relationpkg.NewInMemoryGraph
	NewNeo4jGraph    = relationpkg.NewNeo4jGraph

	EffectiveImportance = storepkg.EffectiveImportance
)
