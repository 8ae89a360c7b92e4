/*
Package grammar holds the pluggable rule set of the markup parser.

Rules are registered into one of two classes, block and run. Building the registry
combines the rules of each class, in registration order, into one alternation so that a
single forward scan finds the nearest rule match. When several rules could match at the
same offset the earliest registered rule wins.
*/
package grammar
