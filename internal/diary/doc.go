// Package diary defines the records that move between the request engine
// and the store: entries, pages of entries, and the parameters of page
// queries and partial updates.
//
// The engine treats these values as opaque payloads. Only the store
// implementations interpret them.
package diary
