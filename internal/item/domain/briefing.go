package domain

// EmptyBriefing is shown when there are no active items to summarize
const EmptyBriefing = "Your slate is clear. Nothing is sitting in any of your sections right now — a good moment to think about what you want to get ahead of."
