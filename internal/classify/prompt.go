package classify

const languagePrompt = `Decide whether the user's message is written in English.
Code snippets, variable names and technical terms such as "heapify" do not make a message non-English.
Reply with exactly one word: english or other.`

const contentPrompt = `You classify messages sent to a Data Structures and Algorithms tutor.

Labels:
- dsa: anything about data structures, algorithms, complexity, programming problems, or a follow-up to the conversation about them.
- pleasantry: greetings, thanks, farewells and small talk with no technical content.
- other: everything else.

Examples:
Message: What is a linked list? -> dsa
Message: How do I reverse it? (after a discussion of linked lists) -> dsa
Message: What about the time complexity? -> dsa
Message: Can you show that in Java? -> dsa
Message: Hi there! -> pleasantry
Message: Thanks, that helped a lot! -> pleasantry
Message: Good night -> pleasantry
Message: What's the weather today? -> other
Message: Who won the football game? -> other
Message: Write me a poem about cats -> other

Reply with exactly one word: dsa, pleasantry or other.`

const retrievalPrompt = `You decide whether a question to a Data Structures and Algorithms tutor should be answered from reference textbooks.

Answer true when the question asks for an explanation, definition, algorithm, complexity analysis or comparison of DSA concepts.
Answer false when it only asks to reformat, translate or restate something already explained, such as changing the programming language of code.

Examples:
Question: What is an array? -> true
Question: How does quicksort partition the array? -> true
Question: What is the time complexity of quicksort? -> true
Question: Can you show the previous merge sort code in Java? -> false
Question: Can you summarise what you just said in one sentence? -> false

Reply with exactly one word: true or false.`
