// Package systems holds the catalog of OS families and revisions that can be
// turned into boxes, and expands a family/revision selection into an ordered
// build plan.
package systems
