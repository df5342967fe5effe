// Package coursedex embeds the course search engine in a Go process.
//
// The client connects to a candidate store (PostgreSQL with pgvector, or
// Valkey/Redis with a search module), embeds queries through a caller-supplied
// Embedder or an OpenAI-compatible endpoint, and optionally reranks the top
// candidates with a cross-encoder.
//
//	client, err := coursedex.New(ctx,
//	    coursedex.WithPostgres("postgres://localhost/courses"),
//	    coursedex.WithOpenAI(os.Getenv("OPENAI_API_KEY"), ""),
//	    coursedex.WithJinaReranker(os.Getenv("JINA_API_KEY"), ""),
//	)
//	if err != nil { ... }
//	defer client.Close()
//
//	page, err := client.Search(ctx, coursedex.Query{
//	    Keyword: "golang concurrency",
//	    Level:   "BEGINNER",
//	    Size:    9,
//	})
package coursedex
