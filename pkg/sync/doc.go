/*
The sync package implements studip-sync's download algorithm. It mirrors the
documents of every course the user is a member of into a local directory.

A sync runs in three steps for every course:
 1. The Builder walks the course's remote folders and builds a tree of the
    files that exist remotely. Files and folders that fail to load are
    skipped, and the rest of the tree is still built.
 2. The Scheduler compares the tree with the local directory of the course.
    A file is downloaded if it's missing locally, or if the local copy is
    older than the remote one. Until its download finishes, a file is an empty
    placeholder whose modification time is the Unix epoch, so an interrupted
    download is retried by the next sync.
 3. The Loop runs the two steps for a lecture and then its tutorial, for every
    lecture concurrently, and repeats after the configured interval.

Local files are never deleted, even if they were removed remotely.
*/
package sync
