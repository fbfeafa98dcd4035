// Package evaluation turns a batch of rows and a set of rules into findings
// and folds them into the two audit metrics: an optimization score in [0,100]
// and a total cost impact.
//
// Evaluation is a pure, synchronous pass. Rows are iterated in the outer loop
// and rules in the inner loop, so identical inputs always produce findings in
// the same order.
package evaluation
