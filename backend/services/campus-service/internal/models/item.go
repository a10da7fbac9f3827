package models

import (
	"time"

	"campuswallet/backend/libs/money"
)

// Item is a catalog entry: a book in the library or a product in the canteen/store.
type Item struct {
	ID        string       `json:"id"`
	Type      Module       `json:"type"`
	Name      string       `json:"name"`
	Price     money.Amount `json:"price"`
	Quantity  int          `json:"quantity"`
	Topics    []string     `json:"topics,omitempty"`
	Author    string       `json:"author,omitempty"`
	ISBN      string       `json:"isbn,omitempty"`
	Publisher string       `json:"publisher,omitempty"`
	Year      int          `json:"year,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// ItemSummary is the slice of an item embedded in transaction listings.
type ItemSummary struct {
	ID     string       `json:"id"`
	Type   Module       `json:"type"`
	Name   string       `json:"name"`
	Price  money.Amount `json:"price"`
	Author string       `json:"author,omitempty"`
}

// Summary returns the embedded form of i.
func (i *Item) Summary() *ItemSummary {
	return &ItemSummary{ID: i.ID, Type: i.Type, Name: i.Name, Price: i.Price, Author: i.Author}
}
