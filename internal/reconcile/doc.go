// Package reconcile merges the trusted filter set with a suggested
// annotation into one Request.
//
// The suggestion can add a grouping key, a limit or columns, and only under
// the rules in Reconciler. It can never add, change or remove a filter.
package reconcile
