package prompt

// experimentLibrary is the static knowledge base embedded in every generate
// prompt: a condensed table of past conversational-marketing experiments with
// their measured outcomes. Inert configuration data.
const experimentLibrary = `CONVERSATIONAL MARKETING EXPERIMENT LIBRARY

| Experiment | Setup | Measured outcome |
|---|---|---|
| Pricing-page targeted welcome | Proactive chat prompt shown after 10s on pricing page | +28% demo requests from page |
| Bot-led qualification before handoff | Bot asks company size and use case before routing to sales | +19% SQL acceptance, -35% rep time on unqualified leads |
| Knowledge-base deflection flow | Bot suggests top 3 help articles before offering live chat | 41% of support chats deflected, CSAT unchanged |
| Post-webinar follow-up chat | Chat opens for attendees revisiting within 7 days | +12% meeting bookings |
| Exit-intent conversation | Prompt triggered on exit intent from signup flow | +9% recovered signups |
| Free-trial activation nudge | In-app message on day 3 of inactive trials | +15% activation, +6% trial-to-paid |
| Homepage generic greeter | Untargeted "How can we help?" on homepage | No impact on conversions |
| Off-hours capture form | Bot collects email and question outside business hours | +31% next-day reply rate |
| Case-study page social proof | Bot offers a relevant case study by industry | +22% content engagement |
| Cart-abandon outreach | Proactive prompt on checkout hesitation | +7% completed purchases |`
