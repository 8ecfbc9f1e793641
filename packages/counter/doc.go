// Package counter implements durable, cross-process scalar counters.
//
// Each counter is a single file whose entire content is the decimal value.
// Reading an absent counter yields zero. Because a test body may run in a
// process that does not share memory with the process that later reads the
// counter, the filesystem is the only synchronization primitive used.
//
// Increments are read-modify-write and therefore assume at most one active
// writer per counter at a time; tests of one suite run sequentially, which
// satisfies that contract.
package counter
