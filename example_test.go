package sheetsql_test

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/nao1215/sheetsql"
	_ "github.com/nao1215/sheetsql/driver"
)

func ExampleEngine_Query() {
	engine, err := sheetsql.New(sheetsql.DefaultConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Close()

	ctx := context.Background()
	sess := engine.NewSession()
	for _, stmt := range []string{
		`CREATE WORKBOOK sales`,
		`CREATE SHEET orders (id INT NOT NULL, region TEXT, amount DECIMAL)`,
		`INSERT INTO orders VALUES (1, 'east', 10.5), (2, 'west', 20), (3, 'east', 4.5)`,
	} {
		if err := sheetsql.ResultError(engine.Query(ctx, sess, stmt, sheetsql.ExecOptions{})); err != nil {
			log.Fatal(err)
		}
	}

	res := engine.Query(ctx, sess, `SELECT region, SUM(amount) AS total FROM orders GROUP BY region ORDER BY total DESC`, sheetsql.ExecOptions{})
	if err := sheetsql.ResultError(res); err != nil {
		log.Fatal(err)
	}
	for _, row := range res.Rows {
		fmt.Printf("%s: %.1f\n", row["region"], row["total"])
	}
	// Output:
	// west: 20.0
	// east: 15.0
}

func ExampleResultError() {
	engine, err := sheetsql.New(sheetsql.DefaultConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Close()

	res := engine.Query(context.Background(), engine.NewSession(), `SELECT * FROM orders`, sheetsql.ExecOptions{})
	fmt.Println(res.Success, res.ErrorKind)
	// Output:
	// false VALIDATION
}

func Example_databaseSQL() {
	db, err := sql.Open("sheetsql", ":memory:")
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	// USE and CREATE WORKBOOK are per connection
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`CREATE WORKBOOK crm`,
		`CREATE SHEET people (name TEXT, age INT)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			log.Fatal(err)
		}
	}
	if _, err := db.Exec(`INSERT INTO people VALUES (?, ?), (?, ?)`, "ann", 31, "bob", 27); err != nil {
		log.Fatal(err)
	}

	var name string
	if err := db.QueryRow(`SELECT name FROM people WHERE age < ?`, 30).Scan(&name); err != nil {
		log.Fatal(err)
	}
	fmt.Println(name)
	// Output:
	// bob
}
