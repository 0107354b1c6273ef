package seed

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/shelfmark/shelfmark-engine/pkg/models"
)

// The compiled-in manifest of builtin entity schemas, sandbox scripts and
// schema-to-script-pair links. It is the ground truth Run reconciles storage
// against on every boot.

//go:embed scripts/*.wasm.b64
var scriptFS embed.FS

const (
	bookSchemaSlug  = "book"
	animeSchemaSlug = "anime"
	mangaSchemaSlug = "manga"

	openLibrarySearchScriptSlug       = "openlibrary.book.search"
	openLibraryDetailsScriptSlug      = "openlibrary.book.details"
	googleBooksSearchScriptSlug       = "google-books.book.search"
	googleBooksDetailsScriptSlug      = "google-books.book.details"
	hardcoverSearchScriptSlug         = "hardcover.book.search"
	hardcoverDetailsScriptSlug        = "hardcover.book.details"
	myanimelistAnimeSearchScriptSlug  = "myanimelist.anime.search"
	myanimelistAnimeDetailsScriptSlug = "myanimelist.anime.details"
	myanimelistMangaSearchScriptSlug  = "myanimelist.manga.search"
	myanimelistMangaDetailsScriptSlug = "myanimelist.manga.details"
)

type schemaDefinition struct {
	Slug             string
	Name             string
	EventSchemas     []models.EventSchema
	PropertiesSchema json.RawMessage
}

type scriptDefinition struct {
	Slug string
	Name string
	Code string
}

type linkDefinition struct {
	SchemaSlug        string
	SearchScriptSlug  string
	DetailsScriptSlug string
}

// mediaEventSchemas are the loggable event types shared by all builtin media
// schemas.
var mediaEventSchemas = []models.EventSchema{
	{
		Name: "Seen",
		Slug: "media.seen",
		PropertiesSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"platform": {"type": "string"},
				"finished_at": {"type": "string", "format": "date-time"}
			}
		}`),
	},
	{
		Name: "Progress",
		Slug: "media.progress",
		PropertiesSchema: json.RawMessage(`{
			"type": "object",
			"required": ["progress_percent"],
			"properties": {
				"status": {"type": "string", "enum": ["in_progress", "completed"]},
				"progress_percent": {"type": "number", "minimum": 0, "maximum": 100}
			}
		}`),
	},
}

var bookPropertiesSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"description": {"type": "string"},
		"pages": {"type": "number"},
		"authors": {"type": "array", "items": {"type": "string"}},
		"publisher": {"type": "string"},
		"publish_year": {"type": "number"},
		"isbn": {"type": "string"},
		"cover_image": {"type": "string"}
	}
}`)

var animePropertiesSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"description": {"type": "string"},
		"episodes": {"type": "number"},
		"status": {"type": "string"},
		"aired_from": {"type": "string"},
		"genres": {"type": "array", "items": {"type": "string"}},
		"cover_image": {"type": "string"}
	}
}`)

var mangaPropertiesSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"description": {"type": "string"},
		"chapters": {"type": "number"},
		"volumes": {"type": "number"},
		"status": {"type": "string"},
		"genres": {"type": "array", "items": {"type": "string"}},
		"cover_image": {"type": "string"}
	}
}`)

func builtinEntitySchemas() []schemaDefinition {
	return []schemaDefinition{
		{Slug: bookSchemaSlug, Name: "Book", EventSchemas: mediaEventSchemas, PropertiesSchema: bookPropertiesSchema},
		{Slug: animeSchemaSlug, Name: "Anime", EventSchemas: mediaEventSchemas, PropertiesSchema: animePropertiesSchema},
		{Slug: mangaSchemaSlug, Name: "Manga", EventSchemas: mediaEventSchemas, PropertiesSchema: mangaPropertiesSchema},
	}
}

func builtinSandboxScripts() []scriptDefinition {
	return []scriptDefinition{
		{Slug: openLibrarySearchScriptSlug, Name: "OpenLibrary Book Search", Code: scriptCode("openlibrary-book-search")},
		{Slug: googleBooksSearchScriptSlug, Name: "Google Books Book Search", Code: scriptCode("google-books-book-search")},
		{Slug: hardcoverSearchScriptSlug, Name: "Hardcover Book Search", Code: scriptCode("hardcover-book-search")},
		{Slug: myanimelistAnimeSearchScriptSlug, Name: "MyAnimeList Anime Search", Code: scriptCode("myanimelist-anime-search")},
		{Slug: myanimelistMangaSearchScriptSlug, Name: "MyAnimeList Manga Search", Code: scriptCode("myanimelist-manga-search")},
		{Slug: openLibraryDetailsScriptSlug, Name: "OpenLibrary Book Import", Code: scriptCode("openlibrary-book-details")},
		{Slug: googleBooksDetailsScriptSlug, Name: "Google Books Book Import", Code: scriptCode("google-books-book-details")},
		{Slug: hardcoverDetailsScriptSlug, Name: "Hardcover Book Import", Code: scriptCode("hardcover-book-details")},
		{Slug: myanimelistAnimeDetailsScriptSlug, Name: "MyAnimeList Anime Import", Code: scriptCode("myanimelist-anime-details")},
		{Slug: myanimelistMangaDetailsScriptSlug, Name: "MyAnimeList Manga Import", Code: scriptCode("myanimelist-manga-details")},
	}
}

func builtinScriptLinks() []linkDefinition {
	return []linkDefinition{
		{SchemaSlug: bookSchemaSlug, SearchScriptSlug: openLibrarySearchScriptSlug, DetailsScriptSlug: openLibraryDetailsScriptSlug},
		{SchemaSlug: bookSchemaSlug, SearchScriptSlug: googleBooksSearchScriptSlug, DetailsScriptSlug: googleBooksDetailsScriptSlug},
		{SchemaSlug: bookSchemaSlug, SearchScriptSlug: hardcoverSearchScriptSlug, DetailsScriptSlug: hardcoverDetailsScriptSlug},
		{SchemaSlug: animeSchemaSlug, SearchScriptSlug: myanimelistAnimeSearchScriptSlug, DetailsScriptSlug: myanimelistAnimeDetailsScriptSlug},
		{SchemaSlug: mangaSchemaSlug, SearchScriptSlug: myanimelistMangaSearchScriptSlug, DetailsScriptSlug: myanimelistMangaDetailsScriptSlug},
	}
}

func scriptCode(name string) string {
	data, err := scriptFS.ReadFile(fmt.Sprintf("scripts/%s.wasm.b64", name))
	if err != nil {
		// The manifest is compiled in; a missing artifact is a build defect.
		panic(fmt.Sprintf("seed: missing builtin script artifact %q: %v", name, err))
	}
	return string(data)
}
