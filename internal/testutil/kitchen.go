package testutil

import (
	"github.com/roach88/qbind/internal/catalog"
	"github.com/roach88/qbind/internal/sqlir"
)

// Kitchen entity types.
var (
	CookType       = sqlir.EntityType("Cook")
	ChefType       = sqlir.EntityType("Chef")
	KitchenType    = sqlir.EntityType("Kitchen")
	RestaurantType = sqlir.EntityType("Restaurant")
)

// KitchenCatalog returns the fixture catalog:
//
//	Restaurant (ID)  ←  Kitchen (ID, RestaurantID)  ←  Cook (ID, KitchenID)
//	                                                     ↑ Chef (Kind = "Chef")
//
// Cook.Kitchen and Kitchen.Restaurant are one-navigations to primary keys;
// Kitchen.Cooks is a many-navigation; Cook.Substitution navigates to a Cook
// through a non-key column (SubstitutionName → FirstName).
func KitchenCatalog() *catalog.Catalog {
	cat, err := catalog.New(
		catalog.Entity{
			Name:  "Restaurant",
			Table: "RestaurantTable",
			Key:   "ID",
			Columns: []catalog.Column{
				{Name: "ID", Type: sqlir.Int},
				{Name: "Name", Type: sqlir.String},
			},
			Navigations: []catalog.Navigation{
				{Name: "Kitchens", Target: "Kitchen", ThisKey: "ID", OtherKey: "RestaurantID", Cardinality: sqlir.CardinalityMany},
			},
		},
		catalog.Entity{
			Name:  "Kitchen",
			Table: "KitchenTable",
			Key:   "ID",
			Columns: []catalog.Column{
				{Name: "ID", Type: sqlir.Int},
				{Name: "Name", Type: sqlir.String},
				{Name: "RestaurantID", Type: sqlir.Int},
				{Name: "RoomNumber", Type: sqlir.Int},
			},
			Navigations: []catalog.Navigation{
				{Name: "Restaurant", Target: "Restaurant", ThisKey: "RestaurantID", OtherKey: "ID"},
				{Name: "Cooks", Target: "Cook", ThisKey: "ID", OtherKey: "KitchenID", Cardinality: sqlir.CardinalityMany},
			},
		},
		catalog.Entity{
			Name:  "Cook",
			Table: "CookTable",
			Key:   "ID",
			Columns: []catalog.Column{
				{Name: "ID", Type: sqlir.Int},
				{Name: "FirstName", Type: sqlir.String},
				{Name: "IsFullTimeEmployee", Type: sqlir.Bool},
				{Name: "IsStarredCook", Type: sqlir.Bool},
				{Name: "KitchenID", Type: sqlir.Int},
				{Name: "SubstitutionName", Type: sqlir.String},
				{Name: "Salary", Type: sqlir.Decimal},
				{Name: "Kind", Type: sqlir.String},
			},
			Navigations: []catalog.Navigation{
				{Name: "Kitchen", Target: "Kitchen", ThisKey: "KitchenID", OtherKey: "ID"},
				{Name: "Substitution", Target: "Cook", ThisKey: "SubstitutionName", OtherKey: "FirstName"},
			},
		},
		catalog.Entity{
			Name:          "Chef",
			Base:          "Cook",
			Discriminator: &catalog.Discriminator{Column: "Kind", Value: "Chef"},
			Columns: []catalog.Column{
				{Name: "LetterOfRecommendation", Type: sqlir.String},
			},
		},
	)
	if err != nil {
		panic("testutil: kitchen catalog is invalid: " + err.Error())
	}
	return cat
}

// KitchenCUE is the kitchen catalog written as CUE, matching KitchenCatalog.
const KitchenCUE = `
entity: Restaurant: {
	table: "RestaurantTable"
	key:   "ID"
	columns: {
		ID:   int
		Name: string
	}
	navigation: Kitchens: {target: "Kitchen", other_key: "RestaurantID", cardinality: "many"}
}

entity: Kitchen: {
	table: "KitchenTable"
	key:   "ID"
	columns: {
		ID:           int
		Name:         string
		RestaurantID: int
		RoomNumber:   int
	}
	navigation: {
		Restaurant: {target: "Restaurant", this_key: "RestaurantID"}
		Cooks: {target: "Cook", other_key: "KitchenID", cardinality: "many"}
	}
}

entity: Cook: {
	table: "CookTable"
	key:   "ID"
	columns: {
		ID:                 int
		FirstName:          string
		IsFullTimeEmployee: bool
		IsStarredCook:      bool
		KitchenID:          int
		SubstitutionName:   string
		Salary:             "decimal"
		Kind:               string
	}
	navigation: {
		Kitchen: {target: "Kitchen", this_key: "KitchenID"}
		Substitution: {target: "Cook", this_key: "SubstitutionName", other_key: "FirstName"}
	}
}

entity: Chef: {
	base: "Cook"
	discriminator: {column: "Kind", value: "Chef"}
	columns: LetterOfRecommendation: string
}
`

// KitchenDDL is a SQLite schema for the kitchen tables without the Chef
// hierarchy. Introspected, it yields Restaurant, Kitchen and Cook entities
// with the Kitchen/Restaurant one-navigations and Cooks/Kitchens
// many-navigations.
const KitchenDDL = `
CREATE TABLE Restaurant (
	ID   INTEGER PRIMARY KEY,
	Name TEXT NOT NULL
);

CREATE TABLE Kitchen (
	ID           INTEGER PRIMARY KEY,
	Name         TEXT NOT NULL,
	RestaurantID INTEGER REFERENCES Restaurant(ID),
	RoomNumber   INTEGER
);

CREATE TABLE Cook (
	ID                 INTEGER PRIMARY KEY,
	FirstName          TEXT NOT NULL,
	IsFullTimeEmployee BOOLEAN NOT NULL DEFAULT 0,
	IsStarredCook      BOOLEAN NOT NULL DEFAULT 0,
	KitchenID          INTEGER REFERENCES Kitchen(ID),
	Salary             DECIMAL(10, 2),
	HiredAt            DATETIME
);
`

// KitchenSeed fills the KitchenDDL tables.
const KitchenSeed = `
INSERT INTO Restaurant (ID, Name) VALUES (1, 'Chez Gusteau');

INSERT INTO Kitchen (ID, Name, RestaurantID, RoomNumber) VALUES
	(1, 'Main', 1, 101),
	(2, 'Pastry', 1, 102);

INSERT INTO Cook (ID, FirstName, IsFullTimeEmployee, IsStarredCook, KitchenID, Salary, HiredAt) VALUES
	(1, 'Remy', 1, 1, 1, 3200.50, '2007-06-29 09:00:00'),
	(2, 'Linguini', 0, 0, 1, 1500.00, '2007-07-02 09:00:00'),
	(3, 'Colette', 1, 1, 2, 4100.00, '2001-03-15 09:00:00');
`
