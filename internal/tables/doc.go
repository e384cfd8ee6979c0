// Package tables derives display tables from a flat property snapshot
//
// Keys prefixed with api.TablePrefix declare a table whose value is a regular
// expression. Every other key that fully matches a declared pattern with at
// least two capture groups becomes a cell, where group one names the row and
// group two names the column. Whatever is left lands in the fallback table
package tables
