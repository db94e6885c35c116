package scripture

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	cerrors "github.com/EvanderIV/theology/core/errors"
)

// Aliases maps an alternate or historical book name to the canonical dataset
// key. Both sides are lower case.
type Aliases map[string]string

// DefaultAliases returns the alias table the reader has always shipped with.
func DefaultAliases() Aliases {
	return Aliases{
		"psalm":           "psalms",
		"song of solomon": "song of songs",
		"canticles":       "song of songs",
		"apocalypse":      "revelation",
	}
}

// Merge returns a new table holding a's entries overridden by other's.
// Keys and values are lower-cased.
func (a Aliases) Merge(other Aliases) Aliases {
	merged := make(Aliases, len(a)+len(other))
	for k, v := range a {
		merged[foldName(k)] = foldName(v)
	}
	for k, v := range other {
		merged[foldName(k)] = foldName(v)
	}
	return merged
}

// aliasFile is the on-disk YAML layout:
//
//	aliases:
//	  psalm: psalms
//	  apocalypse: revelation
type aliasFile struct {
	Aliases map[string]string `yaml:"aliases"`
}

// LoadAliases reads an alias table from a YAML file.
func LoadAliases(path string) (Aliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.NewIO("read", path, err)
	}

	var file aliasFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &cerrors.ParseError{Format: "YAML", Path: path, Message: "invalid alias table", Err: err}
	}

	aliases := make(Aliases, len(file.Aliases))
	for k, v := range file.Aliases {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			return nil, cerrors.NewParse("YAML", path, "alias entries need both a name and a target")
		}
		aliases[foldName(k)] = foldName(v)
	}
	return aliases, nil
}

// OSISAliases maps each lower-cased OSIS book ID to its canonical name,
// so "gen 1:1" and "1cor 13:4" resolve against English-keyed datasets.
func OSISAliases() Aliases {
	aliases := make(Aliases, len(osisBooks))
	for _, b := range osisBooks {
		aliases[foldName(b.ID)] = foldName(b.Name)
	}
	return aliases
}

// BookResolver canonicalizes raw book names. It is safe for concurrent use
// once constructed.
type BookResolver struct {
	aliases Aliases
}

// NewBookResolver returns a resolver over aliases. A nil table means
// DefaultAliases.
func NewBookResolver(aliases Aliases) *BookResolver {
	if aliases == nil {
		aliases = DefaultAliases()
	}
	return &BookResolver{aliases: Aliases{}.Merge(aliases)}
}

// Canonicalize lower-cases name and applies the alias table. Names without an
// alias are returned lower-cased; existence is checked by the Resolver.
func (r *BookResolver) Canonicalize(name string) string {
	folded := foldName(name)
	if canonical, ok := r.aliases[folded]; ok {
		return canonical
	}
	return folded
}

// Aliases returns a copy of the active alias table.
func (r *BookResolver) Aliases() Aliases {
	return Aliases{}.Merge(r.aliases)
}

func foldName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// BookInfo pairs an OSIS book ID with the canonical English name used as the
// dataset key.
type BookInfo struct {
	ID   string
	Name string
}

// OSISBookName returns the canonical name for an OSIS ID such as "Matt".
func OSISBookName(id string) (string, bool) {
	for _, b := range osisBooks {
		if strings.EqualFold(b.ID, id) {
			return b.Name, true
		}
	}
	return "", false
}

// Canonical names match the alias targets above ("Psalms", "Song of Songs",
// "Revelation").
var osisBooks = []BookInfo{
	{"Gen", "Genesis"}, {"Exod", "Exodus"}, {"Lev", "Leviticus"}, {"Num", "Numbers"},
	{"Deut", "Deuteronomy"}, {"Josh", "Joshua"}, {"Judg", "Judges"}, {"Ruth", "Ruth"},
	{"1Sam", "1 Samuel"}, {"2Sam", "2 Samuel"}, {"1Kgs", "1 Kings"}, {"2Kgs", "2 Kings"},
	{"1Chr", "1 Chronicles"}, {"2Chr", "2 Chronicles"}, {"Ezra", "Ezra"}, {"Neh", "Nehemiah"},
	{"Esth", "Esther"}, {"Job", "Job"}, {"Ps", "Psalms"}, {"Prov", "Proverbs"},
	{"Eccl", "Ecclesiastes"}, {"Song", "Song of Songs"}, {"Isa", "Isaiah"}, {"Jer", "Jeremiah"},
	{"Lam", "Lamentations"}, {"Ezek", "Ezekiel"}, {"Dan", "Daniel"}, {"Hos", "Hosea"},
	{"Joel", "Joel"}, {"Amos", "Amos"}, {"Obad", "Obadiah"}, {"Jonah", "Jonah"},
	{"Mic", "Micah"}, {"Nah", "Nahum"}, {"Hab", "Habakkuk"}, {"Zeph", "Zephaniah"},
	{"Hag", "Haggai"}, {"Zech", "Zechariah"}, {"Mal", "Malachi"},
	{"Matt", "Matthew"}, {"Mark", "Mark"}, {"Luke", "Luke"}, {"John", "John"},
	{"Acts", "Acts"}, {"Rom", "Romans"}, {"1Cor", "1 Corinthians"}, {"2Cor", "2 Corinthians"},
	{"Gal", "Galatians"}, {"Eph", "Ephesians"}, {"Phil", "Philippians"}, {"Col", "Colossians"},
	{"1Thess", "1 Thessalonians"}, {"2Thess", "2 Thessalonians"}, {"1Tim", "1 Timothy"},
	{"2Tim", "2 Timothy"}, {"Titus", "Titus"}, {"Phlm", "Philemon"}, {"Heb", "Hebrews"},
	{"Jas", "James"}, {"1Pet", "1 Peter"}, {"2Pet", "2 Peter"}, {"1John", "1 John"},
	{"2John", "2 John"}, {"3John", "3 John"}, {"Jude", "Jude"}, {"Rev", "Revelation"},
}
