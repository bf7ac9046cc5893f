package example

type Category string

const (
	CategoryGoal    Category = "goal"
	CategoryBlocker Category = "blocker"
)

type Provider string

const (
	ProviderGitHub Provider = "github"
	ProviderGitLab Provider = "gitlab"
)

type StoreDriver string

const (
	StoreDriverRedis StoreDriver = "redis"
)

type Entry struct {
	Category Category
	Note     string
}

type Credentials struct {
	Provider Provider
}

type StoreConfig struct {
	Driver StoreDriver
}

func bad() {
	c := &Credentials{}
	c.Provider = "bitbucket" // want "enum field Provider assigned string literal"

	s := &StoreConfig{}
	s.Driver = "sqlite" // want "enum field Driver assigned string literal"

	_ = Entry{Category: "prayer", Note: "x"} // want "enum field Category assigned string literal"
}

func good() {
	c := &Credentials{}
	c.Provider = ProviderGitHub // OK: using constant

	s := &StoreConfig{}
	s.Driver = StoreDriverRedis

	_ = Entry{Category: CategoryGoal, Note: "plain strings are fine"}
}

func alsoGood() {
	// OK: Variable, not literal
	provider := ProviderGitLab
	c := &Credentials{Provider: provider}
	_ = c

	_ = map[string]Category{"blocker": CategoryBlocker}
}
