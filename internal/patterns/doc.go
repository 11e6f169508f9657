// Package patterns holds the detection signals the assessment engine draws
// from: the fixed catalog of the static variant and the keyword store that
// the crowdsourced variant grows from reference video filenames.
//
// Keywords merged from a reference video stay in the store after that
// reference is removed. Nothing retracts them.
package patterns
