package aggregate_test

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/syssam/aggregate"
	"github.com/syssam/aggregate/compiler/gen"
	"github.com/syssam/aggregate/dialect/sql"
	"github.com/syssam/aggregate/mapper"
	"github.com/syssam/aggregate/repository"
	"github.com/syssam/aggregate/schema"
)

func Example() {
	ctx := context.Background()
	reg, err := schema.NewRegistry(
		schema.AggregateRoot("Order",
			schema.Field("number", "string"),
			schema.Field("items", "List<OrderItem>"),
			schema.Field("tags", "Set<string>"),
		),
		schema.Entity("OrderItem",
			schema.Field("sku", "string"),
			schema.Field("quantity", "int"),
		),
	)
	if err != nil {
		panic(err)
	}
	root, _ := reg.Resolve("Order")
	agg, err := gen.Build(reg, root)
	if err != nil {
		panic(err)
	}
	for _, t := range agg.Tables {
		fmt.Println(t.Name, t.ColumnNames())
	}

	drv, err := sql.Open("sqlite", "file:example?mode=memory")
	if err != nil {
		panic(err)
	}
	defer drv.Close()
	drv.DB().SetMaxOpenConns(1)
	repo, err := repository.New(drv, agg)
	if err != nil {
		panic(err)
	}
	if err := repo.CreateSchema(ctx); err != nil {
		panic(err)
	}

	id := uuid.New()
	order := mapper.New("Order", id).
		Set("number", "A-1001").
		Set("items", []any{
			mapper.New("OrderItem", uuid.New()).Set("sku", "SKU-1").Set("quantity", int64(2)),
			mapper.New("OrderItem", uuid.New()).Set("sku", "SKU-2").Set("quantity", int64(1)),
		}).
		Set("tags", []any{"gift"})
	if err := repo.Save(ctx, order); err != nil {
		panic(err)
	}
	loaded, err := repo.GetByID(ctx, id)
	if err != nil {
		panic(err)
	}
	for _, item := range loaded.List("items") {
		it := item.(*mapper.Object)
		fmt.Println(it.Fields["sku"], it.Fields["quantity"])
	}

	if err := repo.DeleteByID(ctx, id); err != nil {
		panic(err)
	}
	_, err = repo.GetByID(ctx, id)
	fmt.Println(aggregate.IsNotFound(err))
	// Output:
	// order_items [id sku quantity order_id items_ordinal]
	// orders [id number]
	// order_tags [order_id value]
	// SKU-1 2
	// SKU-2 1
	// true
}
