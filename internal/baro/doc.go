// Package baro holds the data model shared by the barometric analysis pipeline:
// raw pressure readings, sensor identities and the analysis window.
//
// Timestamps everywhere in the tool use the fixed layout YYYY-MM-DD-HH-MM-SS
// without a zone; they are interpreted as UTC.
package baro
