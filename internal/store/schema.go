package store

// Relation declares that records of one kind reference records of another kind
type Relation struct {
	Column     string
	References string
}

// RecordType declares a kind of record that the store persists, along with the
// table it lives in and the constraints the store must enforce
type RecordType struct {
	Name      string
	Table     string
	Unique    []string
	Relations []Relation
}

// Schema enumerates every record type persisted by this service. Migrations under
// migrations/ create exactly these tables, NewPostgres refuses to start unless they
// all exist, and both Store implementations enforce the listed constraints.
var Schema = []RecordType{
	{
		Name:   "User",
		Table:  "twitch_user",
		Unique: []string{"twitch_id", "login"},
	},
	{
		Name:  "Token",
		Table: "twitch_token",
		Relations: []Relation{
			{Column: "user_id", References: "twitch_user"},
		},
	},
	{
		Name:  "Login",
		Table: "twitch_login",
		Relations: []Relation{
			{Column: "token_id", References: "twitch_token"},
			{Column: "user_id", References: "twitch_user"},
		},
	},
	{
		Name:  "ProfileChange",
		Table: "twitch_profile_change",
		Relations: []Relation{
			{Column: "user_id", References: "twitch_user"},
		},
	},
}
